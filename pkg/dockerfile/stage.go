package dockerfile

import (
	"strconv"
	"strings"
)

// StageParent identifies what a build stage derives from: the empty
// scratch image, a previous stage, or an external image reference.
type StageParent struct {
	// Scratch is true when the stage starts from the empty image.
	Scratch bool `json:"scratch,omitempty"`

	// Stage is the index of the parent stage, or -1 when the parent is not
	// a stage of this Dockerfile.
	Stage int `json:"stage"`

	// Image is the external image reference, nil for scratch and stage
	// parents.
	Image *ImageRef `json:"image,omitempty"`
}

// String renders the parent the way it would appear in a FROM instruction.
func (p StageParent) String() string {
	switch {
	case p.Scratch:
		return "scratch"
	case p.Stage >= 0:
		return strconv.Itoa(p.Stage)
	case p.Image != nil:
		return p.Image.String()
	default:
		return ""
	}
}

// Stage is a single stage of a multi-stage build: a FROM instruction and
// every instruction up to (but not including) the next FROM.
type Stage struct {
	// Index is the 0-based position of the stage's FROM in the file.
	Index int `json:"index"`

	// Name is the lowercased FROM alias, or "" when the stage is unnamed.
	Name string `json:"name,omitempty"`

	// Instructions holds the stage's instructions, the FROM included.
	Instructions []Instruction `json:"instructions"`

	// From is the FROM instruction opening the stage.
	From *FromInstruction `json:"from"`

	// Parent is the direct parent of this stage.
	Parent StageParent `json:"parent"`

	// Root is the transitive root of this stage: an external image or
	// scratch, never another stage.
	Root StageParent `json:"root"`
}

// ArgIndex returns the index, relative to this stage, of the first ARG
// instruction defining the given name, or -1. Only instructions after that
// point have the value in scope.
func (s *Stage) ArgIndex(name string) int {
	for i, ins := range s.Instructions {
		if arg, ok := ins.(*ArgInstruction); ok && arg.Name.Value == name {
			return i
		}
	}
	return -1
}

// Stages is the ordered list of build stages of a Dockerfile.
type Stages struct {
	Stages []*Stage `json:"stages"`
}

// NewStages groups a Dockerfile's instructions into stages and resolves
// each stage's parent and root. Instructions before the first FROM belong
// to no stage.
func NewStages(d *Dockerfile) *Stages {
	stages := &Stages{}

	for _, ins := range d.Instructions {
		from, ok := ins.(*FromInstruction)
		if !ok {
			if len(stages.Stages) > 0 {
				last := stages.Stages[len(stages.Stages)-1]
				last.Instructions = append(last.Instructions, ins)
			}
			continue
		}

		imageName := strings.ToLower(from.Image.Value)
		parent := StageParent{Stage: -1}
		switch {
		case imageName == "scratch":
			parent.Scratch = true
		default:
			if prev := stages.GetByName(imageName); prev != nil {
				parent.Stage = prev.Index
			} else {
				ref := from.ImageParsed
				parent.Image = &ref
			}
		}

		root := parent
		if parent.Stage >= 0 {
			root = stages.Stages[parent.Stage].Root
		}

		name := ""
		if from.Alias != nil {
			name = strings.ToLower(from.Alias.Value)
		}

		stages.Stages = append(stages.Stages, &Stage{
			Index:        from.Index,
			Name:         name,
			Instructions: []Instruction{ins},
			From:         from,
			Parent:       parent,
			Root:         root,
		})
	}

	return stages
}

// GetByName finds a stage by its FROM alias, case-insensitively.
func (s *Stages) GetByName(name string) *Stage {
	name = strings.ToLower(name)
	for _, stage := range s.Stages {
		if stage.Name != "" && stage.Name == name {
			return stage
		}
	}
	return nil
}

// Get finds a stage by its string representation: a valid integer is an
// index, anything else an alias.
func (s *Stages) Get(ref string) *Stage {
	if index, err := strconv.Atoi(ref); err == nil {
		if index < 0 || index >= len(s.Stages) {
			return nil
		}
		return s.Stages[index]
	}
	return s.GetByName(ref)
}
