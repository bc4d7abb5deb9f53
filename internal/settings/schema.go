package settings

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// schemaSource is the closed definition every settings document must
// satisfy. Unknown keys, including unknown toggles, are rejected. Owner
// entries are free-form here and canonicalized after decoding.
const schemaSource = `
#Owner: string | null

#Settings: {
	prefix?:       =~"^.?$" | null
	ownerNumber?:  #Owner
	ownerNumbers?: [...#Owner] | null
	channelLink?:  string | null
	public?:       bool
	ownerName?:    string | null
	group?: {
		antilink?:         bool
		antibot?:          bool
		antiforeign?:      bool
		antigroupmention?: bool
		welcome?:          bool
	}
	settings?: {
		alwaysonline?:     bool
		antibug?:          bool
		anticall?:         bool
		antidelete?:       bool
		autoreact?:        bool
		autoreactstatus?:  bool
		autoread?:         bool
		autorecord?:       bool
		autorecordtyping?: bool
		autotyping?:       bool
		autostatusview?:   bool
	}
}
`

// A cue.Context is not safe for concurrent use.
var schema struct {
	once sync.Once
	mu   sync.Mutex
	ctx  *cue.Context
	def  cue.Value
	err  error
}

func loadSchema() error {
	schema.once.Do(func() {
		schema.ctx = cuecontext.New()
		root := schema.ctx.CompileString(schemaSource, cue.Filename("settings.cue"))
		if err := root.Err(); err != nil {
			schema.err = fmt.Errorf("compile settings schema: %w", err)
			return
		}
		schema.def = root.LookupPath(cue.ParsePath("#Settings"))
		if err := schema.def.Err(); err != nil {
			schema.err = fmt.Errorf("lookup settings schema: %w", err)
		}
	})
	return schema.err
}

// validateJSON checks a JSON settings document against the schema.
func validateJSON(doc []byte) error {
	if err := loadSchema(); err != nil {
		return err
	}
	schema.mu.Lock()
	defer schema.mu.Unlock()

	v := schema.ctx.CompileBytes(doc, cue.Filename("settings.json"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrSchema, errors.Details(err, nil))
	}
	if err := schema.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrSchema, errors.Details(err, nil))
	}
	return nil
}

// Validate checks s against the schema.
func Validate(s *Settings) error {
	doc, err := formatJSON.encode(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return validateJSON(doc)
}
