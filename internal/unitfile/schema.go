package unitfile

// HCL decoding targets for workspace files. A workspace describes build
// units plus the static collaborator data (libraries, pipelines, secondary
// toolchain) the CLI resolves against in place of a live build graph.

type fileRoot struct {
	Units     []*unitBlock     `hcl:"unit,block"`
	Libraries []*libraryBlock  `hcl:"library,block"`
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Secondary *secondaryBlock  `hcl:"secondary,block"`
}

// unitBlock is one `unit "name" { ... }` stanza.
type unitBlock struct {
	Name         string             `hcl:"name,label"`
	Target       string             `hcl:"target,optional"`
	Modes        []string           `hcl:"modes,optional"`
	Stdlib       string             `hcl:"stdlib_dir,optional"`
	Flags        []string           `hcl:"flags,optional"`
	SrcDirs      []string           `hcl:"source_dirs,optional"`
	Alias        string             `hcl:"alias,optional"`
	Requires     []string           `hcl:"requires,optional"`
	LocalLibrary string             `hcl:"local_library,optional"`
	ObjDirs      *objDirsBlock      `hcl:"object_dirs,block"`
	Modules      []*moduleBlock     `hcl:"module,block"`
	Preprocess   []*preprocessBlock `hcl:"preprocess,block"`
	Dialects     []*dialectBlock    `hcl:"dialect,block"`
}

type objDirsBlock struct {
	Byte      string `hcl:"byte,optional"`
	Secondary string `hcl:"secondary,optional"`
}

type moduleBlock struct {
	Name    string   `hcl:"name,label"`
	Virtual bool     `hcl:"virtual,optional"`
	Sources []string `hcl:"sources,optional"`
}

type preprocessBlock struct {
	Module   string       `hcl:"module,label"`
	Pipeline string       `hcl:"pipeline,optional"`
	Action   *actionBlock `hcl:"action,block"`
}

type actionBlock struct {
	Prog string   `hcl:"prog"`
	Args []string `hcl:"args,optional"`
}

type dialectBlock struct {
	Name string `hcl:"name,label"`
	Impl string `hcl:"impl,optional"`
	Intf string `hcl:"intf,optional"`
}

// libraryBlock declares an external library the static resolver can answer
// queries about.
type libraryBlock struct {
	Name               string   `hcl:"name,label"`
	SrcDirs            []string `hcl:"source_dirs,optional"`
	PublicByteDir      string   `hcl:"public_byte_dir,optional"`
	PublicSecondaryDir string   `hcl:"public_secondary_dir,optional"`
	Deps               []string `hcl:"deps,optional"`
}

// pipelineBlock declares a named transformation pipeline and its driver.
type pipelineBlock struct {
	Name   string   `hcl:"name,label"`
	Driver string   `hcl:"driver"`
	Flags  []string `hcl:"flags,optional"`
}

// secondaryBlock declares the discoverable alternate toolchain.
type secondaryBlock struct {
	StdlibDirs []string `hcl:"stdlib_dirs,optional"`
	Compiler   string   `hcl:"compiler,optional"`
}
