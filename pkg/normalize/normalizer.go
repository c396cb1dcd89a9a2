package normalize

// Normalizer bundles key normalization with a filename repairer so callers
// can be configured with a different code page pair.
type Normalizer struct {
	Repairer *Repairer
}

// New returns a Normalizer using the given repairer. A nil repairer disables repair.
func New(r *Repairer) *Normalizer {
	return &Normalizer{Repairer: r}
}

// Default returns a Normalizer using DefaultRepairer.
func Default() *Normalizer {
	return New(DefaultRepairer())
}

// Normalize is Normalize.
func (n *Normalizer) Normalize(s string) string {
	return Normalize(s)
}

// StemKey is StemKey.
func (n *Normalizer) StemKey(filename string) string {
	return StemKey(filename)
}

// Repair repairs a filename, reporting false when repair is disabled or fails.
func (n *Normalizer) Repair(raw string) (string, bool) {
	if n == nil || n.Repairer == nil {
		return "", false
	}
	return n.Repairer.Repair(raw)
}
