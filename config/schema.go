package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schema constrains the decoded TOML document. #Config is closed, so
// unknown sections and keys are rejected.
const schema = `
#Config: {
	dispatch?: {
		"default-policy"?: "virtual" | "non-virtual"
		"max-depth"?:      int & >0
		cache?:            bool
	}
	log?: {
		verbosity?: int & >=-4 & <=4
		path?:      string
	}
	trace?: {
		enabled?:  bool
		database?: string & !=""
		buffer?:   int & >=0
	}
	snapshot?: {
		output?: string & !=""
	}
}
`

// Validate checks a decoded configuration document against the schema.
func Validate(raw map[string]any) error {
	ctx := cuecontext.New()
	s := ctx.CompileString(schema)
	if err := s.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := s.LookupPath(cue.ParsePath("#Config"))

	if raw == nil {
		raw = map[string]any{}
	}
	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
