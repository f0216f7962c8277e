package normalize

import "strings"

// greekReplacer spells out lowercase Greek letters, so that "α-synuclein"
// and "alpha-synuclein" normalize to the same key. Both medial and final
// sigma map to "sigma"; all other characters pass through unchanged.
var greekReplacer = strings.NewReplacer(
	"α", "alpha",
	"β", "beta",
	"γ", "gamma",
	"δ", "delta",
	"ε", "epsilon",
	"ζ", "zeta",
	"η", "eta",
	"θ", "theta",
	"ι", "iota",
	"κ", "kappa",
	"λ", "lamda",
	"μ", "mu",
	"ν", "nu",
	"ξ", "xi",
	"ο", "omicron",
	"π", "pi",
	"ρ", "rho",
	"ς", "sigma",
	"σ", "sigma",
	"τ", "tau",
	"υ", "upsilon",
	"φ", "phi",
	"χ", "chi",
	"ψ", "psi",
	"ω", "omega",
)
