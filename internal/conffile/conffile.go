// Package conffile persists processed artifacts as versioned CBOR files.
//
// The on-disk format is an opaque envelope {tag, version, payload}. It is
// deliberately forward- and backward-incompatible: a reader accepts only
// its own exact tag and version and otherwise returns a recoverable
// *VersionError telling the caller to rebuild. There is no lenient or
// partial decoding across versions.
//
// Encoding uses CBOR Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The same
// logical artifact always produces identical bytes.
package conffile

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/vk/stanzaconf/internal/artifact"
)

const (
	// FormatTag identifies this tool's artifact files.
	FormatTag = "stanzaconf"
	// FormatVersion is bumped on any payload schema change, invalidating
	// all previously written files.
	FormatVersion = 1
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("conffile: CBOR encoder initialization failed: " + err.Error())
	}
}

// envelope is the versioned wrapper around the serialized artifact.
type envelope struct {
	Tag     string          `cbor:"tag"`
	Version int             `cbor:"version"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// VersionError reports a tag or version that does not match this reader.
// It is recoverable: the remedy is rebuilding with a matching tool version,
// not crashing the surrounding build.
type VersionError struct {
	Tag     string
	Version int
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf(
		"configuration file has format %q version %d but this tool reads %q version %d; rebuild with a matching tool version",
		e.Tag, e.Version, FormatTag, FormatVersion)
}

// Encode writes the artifact to w inside the versioned envelope.
func Encode(w io.Writer, a *artifact.Artifact) error {
	payload, err := encMode.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding artifact payload: %w", err)
	}
	data, err := encMode.Marshal(envelope{
		Tag:     FormatTag,
		Version: FormatVersion,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("encoding artifact envelope: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

// Decode reads one enveloped artifact from r, rejecting any tag or version
// other than this reader's own.
func Decode(r io.Reader) (*artifact.Artifact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding artifact envelope: %w", err)
	}
	if env.Tag != FormatTag || env.Version != FormatVersion {
		return nil, &VersionError{Tag: env.Tag, Version: env.Version}
	}
	var a artifact.Artifact
	if err := cbor.Unmarshal(env.Payload, &a); err != nil {
		return nil, fmt.Errorf("decoding artifact payload: %w", err)
	}
	return &a, nil
}

// Write persists the artifact at path, fully overwriting any previous file.
func Write(path string, a *artifact.Artifact) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Encode(f, a); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// Read loads a persisted artifact from path.
func Read(path string) (*artifact.Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	a, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}
