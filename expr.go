package madxbmad

import "strings"

// exprTokenize splits a MADX expression into a flat list of tokens and
// separators, mirroring original_source's
// `re.split(r'(,|-|\+|\(|\)|\>|\*|/|\^)', line)` followed by dropping the
// empty strings that appear around multi-character separators like "->".
func exprTokenize(s string) []string {
	s = strings.ReplaceAll(s, "{", "")
	s = strings.ReplaceAll(s, "}", "")

	const seps = ",-+()>*/^"
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if strings.ContainsRune(seps, r) {
			flush()
			toks = append(toks, string(r))
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return toks
}

// rewriteExpr converts a MADX scalar expression into Bmad syntax: constant
// renaming, `elem->param` -> `elem[param]` dereference with an optional unit
// factor, and (when targetParam carries an inverse unit factor) a final
// parenthesize-and-rescale pass. This is the token-substitutive algorithm
// from spec.md §4.C / original_source's bmad_expression, kept intentionally
// non-AST per spec.md §9's "either is acceptable" note.
func (c *Context) rewriteExpr(expr string, targetParam string) string {
	lst := exprTokenize(expr)

	var out strings.Builder
	for len(lst) != 0 {
		if len(lst) >= 4 && lst[1] == "-" && lst[2] == ">" {
			elemName, attr := lst[0], lst[3]
			bmadAttr := c.bmadParamName(attr, elemName)
			if factor, ok := forwardUnitFactor[attr]; ok {
				needsParens := (len(lst) >= 5 && lst[4] == "^") || endsWithSlash(out.String())
				if needsParens {
					out.WriteString("(" + elemName + "[" + bmadAttr + "]" + ")" + factor)
				} else {
					out.WriteString(elemName + "[" + bmadAttr + "]" + factor)
				}
			} else {
				out.WriteString(elemName + "[" + bmadAttr + "]")
			}
			lst = lst[4:]
			continue
		}

		if repl, ok := constTrans[lst[0]]; ok {
			out.WriteString(repl)
			lst = lst[1:]
			continue
		}

		out.WriteString(lst[0])
		lst = lst[1:]
	}

	result := out.String()
	if factor, ok := inverseUnitFactor[targetParam]; ok {
		result = addParens(result, true) + factor
	}
	return result
}

func endsWithSlash(s string) bool {
	s = strings.TrimRight(s, " ")
	return strings.HasSuffix(s, "/")
}

// addParens wraps expr in parentheses iff it contains a top-level '+' or
// '-' that is not part of a scientific-notation exponent (e.g. "3e-4").
// When ignoreLeadingPM is true, a leading sign on the whole expression does
// not by itself trigger parenthesization (spec.md §4.C, §8.4).
func addParens(expr string, ignoreLeadingPM bool) string {
	state := "begin"
	for _, ch := range expr {
		switch {
		case ch >= '0' && ch <= '9' || ch == '.':
			if state == "out" || state == "begin" {
				state = "r1"
			}
		case ch == 'e':
			if state == "r1" {
				state = "r2"
			} else {
				state = "out"
			}
		case ch == '-' || ch == '+':
			switch {
			case state == "r2":
				state = "r3"
			case state == "begin" && ignoreLeadingPM:
				state = "out"
			default:
				return "(" + expr + ")"
			}
		default:
			state = "out"
		}
	}
	return expr
}

// negate returns the arithmetic negation of expr as text: flipping a
// leading sign, or prefixing "-" and parenthesizing additive expressions.
func negate(expr string) string {
	expr = addParens(expr, true)
	if strings.HasPrefix(expr, "-") {
		return expr[1:]
	}
	if strings.HasPrefix(expr, "+") {
		return "-" + expr[1:]
	}
	return "-" + expr
}
