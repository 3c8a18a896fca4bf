package instrument

// FilePlan records what the injector decided for one file. The instrument
// command prints it as YAML with -plan.
type FilePlan struct {
	File    string       `yaml:"file"`
	Package string       `yaml:"package"`
	Methods []MethodPlan `yaml:"methods,omitempty"`
	Skipped []SkipPlan   `yaml:"skipped,omitempty"`
}

// MethodPlan describes a hooked method.
type MethodPlan struct {
	Type       string `yaml:"type"`
	Method     string `yaml:"method"`
	Kind       string `yaml:"kind"`
	Line       int    `yaml:"line"`
	Params     int    `yaml:"params"`
	Results    int    `yaml:"results"`
	Descriptor string `yaml:"descriptor"`
}

// SkipPlan describes a method that was left untouched.
type SkipPlan struct {
	Type   string `yaml:"type"`
	Method string `yaml:"method"`
	Line   int    `yaml:"line"`
	Reason string `yaml:"reason"`
}

// Skip reasons reported in SkipPlan.Reason.
const (
	SkipValueReceiver = "value receiver"
	SkipGeneric       = "generic receiver"
	SkipExcluded      = "excluded method"
	SkipType          = "type not selected"
	SkipNoBody        = "no body"
)
