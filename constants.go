package madxbmad

// constTrans renames MADX built-in scalar constants/functions to their Bmad
// equivalents inside expressions. Grounded on original_source's const_trans
// table, which spec.md §4.C names only a sample of.
var constTrans = map[string]string{
	"e":      "e_log",
	"nmass":  "m_neutron * 1e9",
	"mumass": "m_muon * 1e9",
	"clight": "c_light",
	"qelect": "e_charge",
	"hbar":   "h_bar * 1e6",
	"erad":   "r_e",
	"prad":   "r_p",
	"ceil":   "ceiling",
	"round":  "nint",
	"ranf":   "ran",
	"gauss":  "ran_gauss",
}

// forwardUnitFactor gives the textual suffix appended after a `name->param`
// dereference in an expression, when param's MADX unit differs from Bmad's.
var forwardUnitFactor = map[string]string{
	"volt":   " * 1e-6",
	"freq":   " * 1e-6",
	"energy": " * 1e-9",
	"ex":     " * 1e-6",
	"ey":     " * 1e-6",
	"pc":     " * 1e-9",
	"lag":    " + 0.5",
}

// inverseUnitFactor is applied to the whole expression when a target
// parameter (the left-hand side being assigned) carries a unit factor: e.g.
// writing a literal `energy = 450` needs `* 1e9` since Bmad stores E_tot in
// eV but MADX writes it in GeV.
var inverseUnitFactor = map[string]string{
	"volt":   " * 1e6",
	"freq":   " * 1e6",
	"energy": " * 1e9",
	"ex":     " * 1e6",
	"ey":     " * 1e6",
	"pc":     " * 1e9",
	"lag":    " + 0.5",
}

// sequenceRefer maps a MADX `refer` value to the corresponding Bmad
// `ele_origin` value used in `superimpose` directives.
var sequenceRefer = map[string]string{
	"entry":  "beginning",
	"centre": "center",
	"exit":   "end",
}

// baseTypeTranslate maps a MADX element base type to its Bmad inherit type.
// "???" marks a base type this translator cannot render in Bmad (emits an
// UntranslatableElement diagnostic and drops the element).
var baseTypeTranslate = map[string]string{
	"tkicker":     "kicker",
	"hacdipole":   "ac_kicker",
	"vacdipole":   "ac_kicker",
	"placeholder": "instrument",
	"matrix":      "taylor",
	"srotation":   "patch",
	"xrotation":   "patch",
	"yrotation":   "patch",
	"translation": "patch",
	"changeref":   "patch",
	"monitor":     "monitor",
	"hmonitor":    "monitor",
	"vmonitor":    "monitor",
	"marker":      "marker",
	"drift":       "drift",
	"sbend":       "sbend",
	"rbend":       "rbend",
	"quadrupole":  "quadrupole",
	"sextupole":   "sextupole",
	"octupole":    "octupole",
	"multipole":   "multipole",
	"solenoid":    "solenoid",
	"hkicker":     "hkicker",
	"vkicker":     "vkicker",
	"kicker":      "kicker",
	"rfcavity":    "rfcavity",
	"twcavity":    "lcavity",
	"elseparator": "elseparator",
	"instrument":  "instrument",
	"ecollimator": "ecollimator",
	"rcollimator": "rcollimator",
	"collimator":  "collimator", // resolved to e/r-collimator after param scan
	"beambeam":    "beambeam",
	"crabcavity":  "crab_cavity",
	"rfmultipole": "???",
	"nllens":      "???",
	"dipedge":     "???",
	"sequence":    "???",
	"twiss":       "???",
	"beam":        "???",
}

// baseTypeOrder lists baseTypeTranslate's keys in a fixed priority order for
// prefix matching against an undeclared madx_inherit token (spec.md §4.D:
// "match the declared parent by unique prefix against the base-type
// table"). A map has no stable iteration order, so resolution needs an
// explicit, deterministic scan order (longer/more-specific names first,
// so e.g. "rcollimator" does not get shadowed by a hypothetical shorter
// overlapping prefix).
var baseTypeOrder = []string{
	"rfmultipole", "rfcavity", "rcollimator", "ecollimator", "collimator",
	"crabcavity", "placeholder", "hacdipole", "vacdipole", "tkicker",
	"hkicker", "vkicker", "kicker", "translation", "changeref",
	"srotation", "xrotation", "yrotation", "twcavity", "monitor",
	"hmonitor", "vmonitor", "marker", "drift", "sbend", "rbend",
	"quadrupole", "sextupole", "octupole", "multipole", "solenoid",
	"instrument", "elseparator", "beambeam", "matrix", "nllens",
	"dipedge", "sequence", "twiss", "beam",
}

// bmadParamName renames MADX parameters with no structural rewrite rule to
// their Bmad equivalent.
var bmadParamName = map[string]string{
	"volt":  "voltage",
	"freq":  "rf_frequency",
	"lag":   "phi0",
	"ex":    "e_field",
	"ey":    "e_field",
	"lrad":  "l",
	"xsize": "x_limit",
	"ysize": "y_limit",
	"dx":    "x_offset",
	"dy":    "y_offset",
	"ds":    "z_offset",
}

// ignoreParams lists MADX parameters dropped outright during emission. Note
// that "lrad" also appears in bmadParamName (renamed to "l"); emitElement
// checks this list first, so an element definition drops lrad, while an
// elem->lrad reference or assignment still goes through bmadParamName and
// becomes elem[l].
var ignoreParams = map[string]bool{
	"lrad":        true,
	"slot_id":     true,
	"aper_tol":    true,
	"apertype":    true,
	"thick":       true,
	"add_angle":   true,
	"assembly_id": true,
	"mech_sep":    true,
	"betrf":       true,
	"tfill":       true,
	"shunt":       true,
	"pg":          true,
}

// madxLogicalParams lists bare-word flags that appear either as a plain
// token (true) or negated with a leading "-" (false) rather than as
// "name = value" pairs.
var madxLogicalParams = map[string]bool{
	"kill_ent_fringe":      true,
	"kill_exi_fringe":      true,
	"thick":                true,
	"no_cavity_totalpath":  true,
}

// beamKeys lists the `beam` command's recognized parameter keys, in the
// fixed emission order the original implementation uses.
var beamKeys = []string{"particle", "energy", "pc", "gamma", "npart"}

// twissKeys lists the `twiss`/`beta0` command's recognized parameter keys,
// paired with their Bmad target and which state block (beginning vs
// particle_start) they belong to.
type twissTarget struct {
	bmadKey string
	block   string // "beginning" or "particle_start"
	twopi   bool   // true if the value must be scaled by twopi
}

var twissKeys = map[string]twissTarget{
	"betx": {"beta_a", "beginning", false},
	"bety": {"beta_b", "beginning", false},
	"alfx": {"alpha_a", "beginning", false},
	"alfy": {"alpha_b", "beginning", false},
	"mux":  {"phi_a", "beginning", true},
	"muy":  {"phi_b", "beginning", true},
	"dx":   {"eta_x", "beginning", false},
	"dy":   {"eta_y", "beginning", false},
	"dpx":  {"etap_x", "beginning", false},
	"dpy":  {"etap_y", "beginning", false},
	"x":    {"x", "particle_start", false},
	"y":    {"y", "particle_start", false},
	"px":   {"px", "particle_start", false},
	"py":   {"py", "particle_start", false},
}

// twissKeyOrder fixes the emission order for twissKeys, matching the
// original implementation's sequential if-chain.
var twissKeyOrder = []string{
	"betx", "bety", "alfx", "alfy", "mux", "muy",
	"dx", "dy", "dpx", "dpy", "x", "y", "px", "py",
}

// skipSilently lists command heads that are recognized but intentionally
// produce no output and no diagnostic.
var skipSilently = map[string]bool{
	"aperture": true, "show": true, "value": true, "efcomp": true,
	"print": true, "select": true, "optics": true, "option": true,
	"survey": true, "emit": true, "help": true, "set": true,
	"eoption": true, "system": true, "ealign": true, "sixtrack": true,
	"flatten": true, "elseif": true, "else": true,
}

// warnSkip lists command heads recognized as unsupported-control-flow
// (if/while/exec) or unsupported-sequence-op (cycle/reflect/...), each
// warned about and then skipped.
var unsupportedControlFlow = map[string]bool{"exec": true, "while": true, "if": true}

var unsupportedSequenceOps = map[string]bool{
	"cycle": true, "reflect": true, "move": true, "remove": true,
	"replace": true, "extract": true,
}
