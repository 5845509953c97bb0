//go:build !mk20dx256

package boot

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"bootcode-go/errcode"
)

// planFile is the on-disk form: an optional embedded plan to start from,
// overlaid with whatever fields the file sets.
type planFile struct {
	Base string `yaml:"base,omitempty"`
	Plan `yaml:",inline"`
}

// LoadPlanYAML reads a plan. Unknown keys are rejected. When the document
// names a base board, the embedded plan for it supplies every field the
// document leaves out. The result is validated.
func LoadPlanYAML(r io.Reader) (Plan, error) {
	const op = "boot.load_plan"
	raw, err := io.ReadAll(r)
	if err != nil {
		return Plan{}, &errcode.E{C: errcode.Error, Op: op, Err: err}
	}

	var head struct {
		Base string `yaml:"base"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return Plan{}, &errcode.E{C: errcode.InvalidConfig, Op: op, Msg: err.Error(), Err: err}
	}
	var f planFile
	if head.Base != "" {
		if f.Plan, err = LookupPlan(head.Base); err != nil {
			return Plan{}, err
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return Plan{}, &errcode.E{C: errcode.InvalidConfig, Op: op, Msg: err.Error(), Err: err}
	}
	if err := f.Plan.Validate(); err != nil {
		return Plan{}, err
	}
	return f.Plan, nil
}

// ReadPlanFile is LoadPlanYAML on a file.
func ReadPlanFile(path string) (Plan, error) {
	fd, err := os.Open(path)
	if err != nil {
		return Plan{}, &errcode.E{C: errcode.Error, Op: "boot.read_plan", Msg: path, Err: err}
	}
	defer fd.Close()
	return LoadPlanYAML(fd)
}

// MarshalPlanYAML renders p in the form LoadPlanYAML reads.
func MarshalPlanYAML(p Plan) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
