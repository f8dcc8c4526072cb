package classcache

import "strings"

// Modifiers is a bit-set of visibility and kind flags. The bit values follow
// the JVM access flags so agents can forward them unchanged.
type Modifiers uint32

const (
	ModPublic Modifiers = 1 << iota
	ModPrivate
	ModProtected
	ModStatic
	ModFinal
	ModSynchronized
	ModVolatile
	ModTransient
	ModNative
	ModInterface
	ModAbstract
	ModStrict
)

var modifierNames = []struct {
	mod  Modifiers
	name string
}{
	{ModPublic, "public"},
	{ModPrivate, "private"},
	{ModProtected, "protected"},
	{ModStatic, "static"},
	{ModFinal, "final"},
	{ModSynchronized, "synchronized"},
	{ModVolatile, "volatile"},
	{ModTransient, "transient"},
	{ModNative, "native"},
	{ModInterface, "interface"},
	{ModAbstract, "abstract"},
	{ModStrict, "strict"},
}

// Has reports whether every flag in flags is set.
func (m Modifiers) Has(flags Modifiers) bool {
	return m&flags == flags
}

// Union returns the bitwise union of m and other.
func (m Modifiers) Union(other Modifiers) Modifiers {
	return m | other
}

// IsPublic reports whether ModPublic is set.
func (m Modifiers) IsPublic() bool { return m.Has(ModPublic) }

// IsPrivate reports whether ModPrivate is set.
func (m Modifiers) IsPrivate() bool { return m.Has(ModPrivate) }

// IsProtected reports whether ModProtected is set.
func (m Modifiers) IsProtected() bool { return m.Has(ModProtected) }

// IsPackagePrivate reports whether none of the access flags are set.
func (m Modifiers) IsPackagePrivate() bool {
	return m&(ModPublic|ModPrivate|ModProtected) == 0
}

// ParseModifiers converts keyword names ("public", "static", ...) into a
// bit-set. Unknown keywords are ignored.
func ParseModifiers(keywords ...string) Modifiers {
	var m Modifiers
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		for _, mn := range modifierNames {
			if mn.name == kw {
				m |= mn.mod
				break
			}
		}
	}
	return m
}

func (m Modifiers) String() string {
	if m == 0 {
		return ""
	}
	var parts []string
	for _, mn := range modifierNames {
		if m.Has(mn.mod) {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, " ")
}
