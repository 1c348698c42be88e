package interp

// Data is the editing context captured for one run: the selection the user
// wants executed plus where to put artifacts. Backends keep a clone and only
// read it.
type Data struct {
	Filetype    string   `json:"filetype"`
	CurrentLine string   `json:"current_line"`
	CurrentBloc string   `json:"current_bloc"`
	WorkDir     string   `json:"work_dir"`
	CLIArgs     []string `json:"cli_args,omitempty"`
}

// Clone returns a copy that shares no memory with d.
func (d Data) Clone() Data {
	c := d
	if d.CLIArgs != nil {
		c.CLIArgs = append([]string(nil), d.CLIArgs...)
	}
	return c
}
