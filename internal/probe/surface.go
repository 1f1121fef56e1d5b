// SPDX-License-Identifier: MPL-2.0

package probe

const (
	// KindConstructible is a value that can be instantiated with new.
	KindConstructible Kind = "constructible"
	// KindCallable is a function value.
	KindCallable Kind = "callable"
	// KindData is any other present value.
	KindData Kind = "data"
	// KindAbsent is a missing (or falsy) value.
	KindAbsent Kind = "absent"
)

type (
	// Kind classifies an exported value.
	Kind string

	// Member is an expected property. Name may be a dotted path
	// ("settings.type").
	Member struct {
		Name string `json:"name"`
		Kind Kind   `json:"kind"`
		// Equals, when set, is compared with the member's string value.
		Equals string `json:"equals,omitempty"`
	}

	// Construction describes how to obtain an instance and what it must expose.
	Construction struct {
		// Factory names a static function producing the instance. Empty means
		// the type itself is instantiated with Args.
		Factory  string   `json:"factory,omitempty"`
		Args     []any    `json:"args"`
		Instance []Member `json:"instance"`
	}

	// Digest describes a static hash function whose output must be a
	// lowercase hex string of Length characters.
	Digest struct {
		Member string `json:"member"`
		Input  string `json:"input"`
		Length int    `json:"length"`
	}

	// TypeSurface is the expected shape of one exported type.
	TypeSurface struct {
		Name string `json:"name"`
		// Path is relative to the library root; empty is the root module.
		Path      string        `json:"path,omitempty"`
		Kind      Kind          `json:"kind"`
		Statics   []Member      `json:"statics,omitempty"`
		Construct *Construction `json:"construct,omitempty"`
		Digests   []Digest      `json:"digests,omitempty"`
	}

	// Surface is the full expected surface of a library.
	Surface struct {
		Types []TypeSurface `json:"types"`
	}
)

// Accepts reports whether an observed kind satisfies the expectation.
// Constructible values are also callable.
func (k Kind) Accepts(observed Kind) bool {
	switch k {
	case KindCallable:
		return observed == KindCallable || observed == KindConstructible
	case KindData:
		return observed != KindAbsent && observed != ""
	default:
		return observed == k
	}
}

// FabricSurface returns the surface expected from the @fabric/core library:
// the root Fabric export with its core statics, the Actor type and the
// Message type.
func FabricSurface() Surface {
	return Surface{Types: []TypeSurface{
		{
			Name: "Fabric",
			Kind: KindConstructible,
			Statics: []Member{
				{Name: "Service", Kind: KindConstructible},
				{Name: "State", Kind: KindConstructible},
				{Name: "sha256", Kind: KindCallable},
				{Name: "random", Kind: KindCallable},
			},
			Digests: []Digest{{Member: "sha256", Input: "test", Length: 64}},
		},
		{
			Name: "Actor",
			Path: "types/actor",
			Kind: KindConstructible,
			Construct: &Construction{
				Args: []any{map[string]any{"name": "test-actor", "type": "Test"}},
				Instance: []Member{
					{Name: "settings", Kind: KindData},
					{Name: "_state", Kind: KindData},
					{Name: "settings.type", Kind: KindData, Equals: "Actor"},
					{Name: "on", Kind: KindCallable},
					{Name: "emit", Kind: KindCallable},
				},
			},
		},
		{
			Name: "Message",
			Path: "types/message",
			Kind: KindConstructible,
			Statics: []Member{
				{Name: "fromVector", Kind: KindCallable},
				{Name: "fromRaw", Kind: KindCallable},
			},
			Construct: &Construction{
				Factory: "fromVector",
				Args:    []any{[]any{"GenericMessage", `{"test":"data"}`}},
				Instance: []Member{
					{Name: "toObject", Kind: KindCallable},
					{Name: "toRaw", Kind: KindCallable},
				},
			},
		},
	}}
}
