package listing

import "fmt"

// Registry keeps a mapping from parser names to their implementations.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry preloaded with the default strategy.
func NewRegistry() *Registry {
	r := &Registry{parsers: map[string]Parser{}}
	r.Register(NewAreraParser())
	return r
}

// Register adds or replaces a parser implementation.
func (r *Registry) Register(parser Parser) {
	if r.parsers == nil {
		r.parsers = map[string]Parser{}
	}
	r.parsers[parser.Name()] = parser
}

// Resolve returns a parser by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Parser, error) {
	if parser, ok := r.parsers[name]; ok {
		return parser, nil
	}
	return nil, fmt.Errorf("listing parser %s is not registered", name)
}
