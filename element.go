package madxbmad

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/accelxlate/madxbmad/internal/diag"
	"github.com/accelxlate/madxbmad/internal/ordered"
)

// resolveBaseType determines an element's MADX/Bmad base types from its
// declared parent, per spec.md §4.D: if the parent is an already-defined
// element, inherit its base types; otherwise take the first entry of
// baseTypeOrder that starts with parent. A parent that is a prefix of several
// entries is not rejected as ambiguous. Returns ok=false if no base type
// matched at all (an "UNKNOWN!" condition in original_source, distinct from
// a matched-but-untranslatable "???" base type).
func (c *Context) resolveBaseType(parent string) (madxInherit, madxBase, bmadInherit, bmadBase string, ok bool) {
	if ele, defined := c.Elements[parent]; defined {
		return parent, ele.MadxBaseType, parent, ele.BmadBaseType, true
	}
	for _, madxType := range baseTypeOrder {
		if strings.HasPrefix(madxType, parent) {
			bmad := baseTypeTranslate[madxType]
			return madxType, madxType, bmad, bmad, true
		}
	}
	return "", "", "", "", false
}

// defineElement builds the Element for a `name: parent, k = v, ...` command.
// dlist is the lowercased token list of the whole command, with dlist[0] the
// new element's name, dlist[2] its declared parent, and dlist[4:] its
// parameter list. Returns nil if the element is untranslatable (parent maps
// to "???", parent is "dipedge", or the parent cannot be resolved at all).
func (c *Context) defineElement(dlist []string, loc fmt.Stringer) *Element {
	parent := dlist[2]

	if parent == "dipedge" {
		c.Log.WarnAt(diag.UntranslatableElement, loc,
			"dipedge element %q not translated; merge it with the neighboring bend by hand", dlist[0])
		return nil
	}

	madxInherit, madxBase, bmadInherit, bmadBase, ok := c.resolveBaseType(parent)
	if !ok {
		c.Log.WarnAt(diag.UnknownConstruct, loc, "%q type element is unknown", parent)
		return nil
	}
	// "sequence" also maps to "???", but placeSubSequence resolves a
	// sub-sequence reference through this function, so it is let through.
	if bmadBase == "???" && madxBase != "sequence" {
		c.Log.WarnAt(diag.UntranslatableElement, loc, "%q type element cannot be translated to Bmad", parent)
		return nil
	}

	ele := NewElement(dlist[0])
	ele.MadxInherit = madxInherit
	ele.MadxBaseType = madxBase
	ele.BmadInherit = bmadInherit
	ele.BmadBaseType = bmadBase

	params, malformed := c.parameterDict(dlist[4:])
	if malformed {
		c.Log.WarnAt(diag.ParserMalformation, loc, "malformed parameter list for %q", dlist[0])
	}

	c.applyBaseTypeRewrite(ele, params)

	// Gated on apertype's presence, not aperture's, matching
	// original_source's own (slightly misnamed) condition.
	if apertype, hasApertype := params.Get("apertype"); hasApertype {
		if aperture, ok := params.Get("aperture"); ok {
			params.Delete("aperture")
			parts := splitTop(c.rewriteExpr(aperture, ""), ",")
			if len(parts) >= 2 {
				params.Set("x_limit", strings.TrimSpace(parts[0]))
				params.Set("y_limit", strings.TrimSpace(parts[1]))
			}
		}
		if apertype == "ellipse" || apertype == "circle" {
			params.Set("aperture_type", "elliptical")
		} else {
			params.Set("aperture_type", "rectangular")
		}
	}

	if aperOffset, ok := params.Get("aper_offset"); ok {
		parts := strings.SplitN(aperOffset, ",", 2)
		if len(parts) == 2 {
			params.Set("x_offset", strings.TrimSpace(parts[0]))
			params.Set("y_offset", strings.TrimSpace(parts[1]))
		}
	}

	if at, ok := params.Get("at"); ok {
		ele.At = at
		params.Delete("at")
	}
	if from, ok := params.Get("from"); ok {
		ele.FromRefEle = from
		params.Delete("from")
	}

	ele.Params = params
	if _, exists := c.Elements[ele.Name]; !exists {
		c.Elements[ele.Name] = ele
	}
	return ele
}

// applyBaseTypeRewrite mutates params (and occasionally ele.BmadInherit /
// ele.BmadBaseType) in place per the per-base-type rules of spec.md §4.D,
// ported from original_source's parse_element if/elif chain over
// madx_base_type.
func (c *Context) applyBaseTypeRewrite(ele *Element, params *ordered.Map[string]) {
	switch ele.MadxBaseType {
	case "quadrupole":
		combineSkew(params, "k1", "k1s", 2)

	case "sextupole":
		combineSkew(params, "k2", "k2s", 3)

	case "octupole":
		combineSkew(params, "k3", "k3s", 4)

	case "multipole":
		expandMultipoleList(c, params, "knl", "l")
		expandMultipoleList(c, params, "ksl", "sl")

	case "elseparator":
		ex, hasEx := params.Get("ex")
		if hasEx {
			ey, hasEy := params.Get("ey")
			tilt, hasTilt := params.Get("tilt")
			if hasEy {
				adj := "-atan2(" + ex + ", " + ey + ")"
				if hasTilt {
					params.Set("tilt", tilt+" - atan2("+ex+", "+ey+")")
				} else {
					params.Set("tilt", adj)
				}
				params.Set("ey", "sqrt(("+ex+")^2 + ("+ey+")^2)")
			} else {
				if hasTilt {
					params.Set("tilt", tilt+" - pi/2")
				} else {
					params.Set("tilt", "-pi/2")
				}
				params.Set("ey", ex)
			}
			params.Delete("ex")
		}

	case "xrotation":
		if angle, ok := params.Get("angle"); ok {
			params.Delete("angle")
			params.Set("y_pitch", negate(angle))
		}

	case "yrotation":
		if angle, ok := params.Get("angle"); ok {
			params.Delete("angle")
			params.Set("x_pitch", negate(angle))
		}

	case "srotation":
		if angle, ok := params.Get("angle"); ok {
			params.Delete("angle")
			params.Set("tilt", angle)
		}

	case "changeref":
		if ang, ok := params.Get("patch_ang"); ok {
			params.Delete("patch_ang")
			parts := splitTop(ang, ",")
			if len(parts) == 3 {
				ax := strings.TrimSpace(parts[0])
				ay := strings.TrimSpace(parts[1])
				az := strings.TrimSpace(parts[2])
				params.Set("y_pitch", ax)
				params.Set("x_pitch", negate(ay))
				params.Set("tilt", az)
			}
		}
		if trans, ok := params.Get("patch_trans"); ok {
			params.Delete("patch_trans")
			parts := splitTop(trans, ",")
			if len(parts) == 3 {
				params.Set("x_offset", strings.TrimSpace(parts[0]))
				params.Set("y_offset", strings.TrimSpace(parts[1]))
				params.Set("z_offset", strings.TrimSpace(parts[2]))
			}
		}

	case "sbend", "rbend":
		if tilt, ok := params.Get("tilt"); ok {
			params.Delete("tilt")
			params.Set("ref_tilt", tilt)
		}

		killEnt, hasKillEnt := params.Get("kill_ent_fringe")
		killExi, hasKillExi := params.Get("kill_exi_fringe")
		params.Delete("kill_ent_fringe")
		params.Delete("kill_exi_fringe")
		ent := hasKillEnt && killEnt == "true"
		exi := hasKillExi && killExi == "true"

		if k0, ok := params.Get("k0"); ok {
			params.Delete("k0")
			params.Set("g_err", k0)
		}
		if k0s, ok := params.Get("k0s"); ok {
			params.Delete("k0s")
			if l, ok := params.Get("l"); ok {
				params.Set("a0", k0s+" * "+l)
			}
		}

		switch {
		case ent && exi:
			params.Set("fringe_at", "no_end")
		case exi:
			params.Set("fringe_at", "entrance_end")
		case ent:
			params.Set("fringe_at", "exit_end")
		}

	case "collimator":
		apertype, _ := params.Get("apertype")
		if apertype == "ellipse" || apertype == "circle" {
			ele.BmadInherit = "ecollimator"
			ele.BmadBaseType = "ecollimator"
		} else {
			ele.BmadInherit = "rcollimator"
			ele.BmadBaseType = "rcollimator"
		}
	}
}

// parameterDict builds an ordered name->expression map from a token list of
// the form ["name", "=", "v1", "v2", ",", "name2", "=", ...], per spec.md
// §4.D and original_source's parameter_dictionary. Bare logical flags
// (kill_ent_fringe, etc.), with or without a leading "-", are also handled.
// Returns malformed=true if the list cannot be parsed (the second token is
// not "="), in which case the partial dictionary built so far is returned,
// per spec.md §7(v).
func (c *Context) parameterDict(words []string) (*ordered.Map[string], bool) {
	pdict := ordered.New[string]()

	var filtered []string
	for _, w := range words {
		if w == "{" || w == "}" || w == ":" {
			continue
		}
		if w == "0." || w == "0.0" {
			w = "0"
		}
		filtered = append(filtered, w)
	}
	words = filtered

	// removeFlag drops words[i] together with the "," that separated it from
	// its neighbor, so no stray comma is left behind in a value.
	removeFlag := func(i int) {
		switch {
		case i+1 < len(words) && words[i+1] == ",":
			words = append(words[:i], words[i+2:]...)
		case i > 0 && words[i-1] == ",":
			words = append(words[:i-1], words[i+1:]...)
		default:
			words = append(words[:i], words[i+1:]...)
		}
	}

	for logical := range madxLogicalParams {
		for i, w := range words {
			if w == logical {
				if i == len(words)-1 || words[i+1] != "=" {
					pdict.Set(logical, "true")
					removeFlag(i)
				}
				break
			}
		}
		for i, w := range words {
			if w == "-"+logical {
				pdict.Set(logical, "false")
				removeFlag(i)
				break
			}
		}
	}

	for len(words) > 0 {
		if len(words) < 2 || words[1] != "=" {
			return pdict, len(words) > 0
		}
		ix := -1
		for i := 2; i < len(words); i++ {
			if words[i] == "=" {
				ix = i
				break
			}
		}
		if ix < 0 {
			pdict.Set(words[0], strings.Join(words[2:], ""))
			break
		}
		end := ix - 2
		if end < 2 {
			end = 2
		}
		pdict.Set(words[0], strings.Join(words[2:end], ""))
		words = words[ix-1:]
	}
	return pdict, false
}

// emitElement renders an element definition as Bmad text: "name: base"
// followed by ", key = value" for each surviving parameter (spec.md §4.D
// "Emission").
func (c *Context) emitElement(ele *Element) string {
	var b strings.Builder
	b.WriteString(ele.Name)
	b.WriteString(": ")
	b.WriteString(ele.BmadInherit)
	ele.Params.Each(func(param, value string) bool {
		if ignoreParams[param] {
			return true
		}
		b.WriteString(", ")
		b.WriteString(c.bmadParamName(param, ele.Name))
		b.WriteString(" = ")
		b.WriteString(c.rewriteExpr(value, param))
		return true
	})
	return b.String()
}

// splitTop splits s on sep at top level only (not inside parentheses),
// which is sufficient for the comma-separated aperture/patch_ang/etc. list
// literals this translator handles (none of which nest parens inside the
// per-component expressions it's asked to split).
func splitTop(s, sep string) []string {
	return strings.Split(s, sep)
}

// combineSkew folds a normal strength kN and a skew strength kNs into a
// single normal strength plus a tilt adjustment, the shared rule behind
// quadrupole/sextupole/octupole skew handling (spec.md §4.D). divisor is
// 2/3/4 for quad/sext/oct respectively. When only the skew term is present,
// its value becomes the normal strength and the tilt is offset by
// -pi/(2*divisor).
func combineSkew(params *ordered.Map[string], normalKey, skewKey string, divisor int) {
	normal, hasNormal := params.Get(normalKey)
	skew, hasSkew := params.Get(skewKey)
	if !hasSkew {
		return
	}
	tilt, hasTilt := params.Get("tilt")

	if hasNormal {
		adj := fmt.Sprintf("-atan2(%s, %s)/%d", skew, normal, divisor)
		if hasTilt {
			params.Set("tilt", tilt+" - atan2("+skew+", "+normal+")/"+strconv.Itoa(divisor))
		} else {
			params.Set("tilt", adj)
		}
		params.Set(normalKey, "sqrt(("+normal+")^2 + ("+skew+")^2)")
		params.Delete(skewKey)
		return
	}

	piOver := fmt.Sprintf("-pi/%d", 2*divisor)
	if hasTilt {
		params.Set("tilt", tilt+fmt.Sprintf(" - pi/%d", 2*divisor))
	} else {
		params.Set("tilt", piOver)
	}
	params.Set(normalKey, skew)
	params.Delete(skewKey)
}

// expandMultipoleList expands a `knl = {a, b, c, ...}` or `ksl = {...}`
// brace list into individually-named k0l/k1l/.../k0sl/k1sl/... parameters,
// omitting zero entries, per spec.md §4.D.
func expandMultipoleList(c *Context, params *ordered.Map[string], key, suffix string) {
	list, ok := params.Get(key)
	if !ok {
		return
	}
	params.Delete(key)
	for n, term := range strings.Split(list, ",") {
		term = strings.TrimSpace(term)
		if term == "0" || term == "" {
			continue
		}
		params.Set(fmt.Sprintf("k%d%s", n, suffix), c.rewriteExpr(term, ""))
	}
}
