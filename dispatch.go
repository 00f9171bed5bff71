package madxbmad

import (
	"fmt"
	"os"
	"strings"

	"github.com/accelxlate/madxbmad/internal/diag"
	"github.com/accelxlate/madxbmad/internal/source"
	"github.com/accelxlate/madxbmad/internal/wrap"
)

// dispatch routes one assembled command to its handler, mirroring
// original_source's parse_command if-chain (spec.md §4.F). words is already
// lowercased, qualifier-stripped, and comma-synthesized by tokenizeCommand.
func (t *Translator) dispatch(words []string, loc source.Location) error {
	out := t.currentOut().w

	if len(words) == 0 {
		return out.WriteLine("")
	}

	if words[0] == "!!verbatim" {
		return out.WriteLine(words[1])
	}

	head := words[0]

	if unsupportedControlFlow[head] {
		t.log.WarnAt(diag.UnsupportedControlFlow, loc,
			"%q construct ignored; the Bmad lattice is likely to diverge from the MADX one here", head)
		return nil
	}
	if skipSilently[head] {
		return nil
	}
	for _, w := range words {
		if w == "macro" {
			return nil
		}
	}
	if unsupportedSequenceOps[head] {
		t.log.WarnAt(diag.UnsupportedSequenceOp, loc, "cannot translate the %q command", head)
		return nil
	}

	switch head {
	case "seqedit":
		if len(words) > 4 {
			t.ctx.SeqeditName = words[4]
		}
		return nil

	case "endedit":
		t.ctx.SeqeditName = ""
		return nil

	case "install":
		return t.dispatchInstall(words, out)

	case "return":
		return t.dispatchReturn(out)

	case "exit", "quit", "stop":
		return t.in.Pop()

	case "title":
		if len(words) > 1 {
			if words[1] == "," {
				return out.WriteLine(strings.Join(words, " "))
			}
			return out.WriteLine("title, " + words[1])
		}
		return nil

	case "endsequence":
		return t.endSequence(out)

	case "call":
		return t.dispatchCall(words, out)

	case "use":
		return t.dispatchUse(words, out)

	case "beam":
		return t.dispatchBeam(words, out)
	}

	if len(words) >= 3 && words[1] == ":" && words[2] == "sequence" {
		return t.startSequence(words, loc, out)
	}

	if t.ctx.InSequence {
		handled, err := t.sequenceMember(words, loc, out)
		if handled || err != nil {
			return err
		}
	}

	if len(words) >= 2 && words[1] == ":" && len(words) > 2 && words[2] == "twiss" {
		return t.dispatchTwiss(words[4:], out)
	}
	if head == "twiss" {
		return t.dispatchTwiss(words[2:], out)
	}
	if len(words) >= 3 && words[2] == "beta0" {
		return t.dispatchTwiss(words[4:], out)
	}

	if len(words) >= 2 && words[1] == ":" && len(words) > 2 && words[2] == "line" {
		return out.WriteLine(strings.Join(words, " "))
	}

	if len(words) >= 2 && words[1] == "=" && !strings.Contains(words[0], "->") {
		return t.dispatchVarAssign(words, loc, out)
	}

	if strings.Contains(words[0], "->") && len(words) >= 2 && words[1] == "=" {
		return t.dispatchAttrAssign(words[0], words[2:], out)
	}

	if len(words) > 4 && words[1] == "," && words[3] == "=" {
		if _, known := t.ctx.Elements[words[0]]; known {
			expr := t.ctx.rewriteExpr(strings.Join(words[4:], ""), words[2])
			return out.WriteLine(fmt.Sprintf("%s[%s] = %s", words[0], t.ctx.bmadParamName(words[2], words[0]), expr))
		}
	}

	if len(words) >= 2 && words[1] == ":" {
		ele := t.ctx.defineElement(words, loc)
		if ele == nil {
			return nil
		}
		return out.WriteLine(t.ctx.emitElement(ele))
	}

	t.log.WarnAt(diag.UnknownConstruct, loc, "unknown construct: %s", strings.Join(words, " "))
	return nil
}

func (t *Translator) dispatchInstall(words []string, out *wrap.Writer) error {
	params, _ := t.ctx.parameterDict(words[2:])
	element, _ := params.Get("element")
	if class, ok := params.Get("class"); ok {
		if err := out.WriteLine(fmt.Sprintf("%s: %s", element, class)); err != nil {
			return err
		}
	}
	at, _ := params.Get("at")
	if from, ok := params.Get("from"); ok {
		return out.WriteLine(fmt.Sprintf("superimpose, element = %s, ref = %s, offset = %s", element, from, at))
	}
	return out.WriteLine(fmt.Sprintf("superimpose, element = %s, ref = %s_mark, offset = %s", element, t.ctx.SeqeditName, at))
}

func (t *Translator) dispatchReturn(out *wrap.Writer) error {
	if err := t.in.Pop(); err != nil {
		return err
	}
	if t.ctx.Flags.OneFile {
		return out.WriteLine(fmt.Sprintf("\n! Returned to File: %s", t.in.Location().Name))
	}
	popped := t.outs[len(t.outs)-1]
	t.outs = t.outs[:len(t.outs)-1]
	return t.writeFinal(popped)
}

func (t *Translator) dispatchCall(words []string, out *wrap.Writer) error {
	eq := -1
	for i, w := range words {
		if w == "=" {
			eq = i
			break
		}
	}
	if eq < 0 || eq+1 >= len(words) {
		t.log.Warn(diag.ParserMalformation, "malformed call command")
		return nil
	}
	file := strings.Join(words[eq+1:], "")
	if !strings.Contains(file, `"`) && !strings.Contains(file, "'") {
		file = strings.ToLower(file)
	}
	file = strings.Trim(file, `"'`)

	f, err := os.Open(file)
	if err != nil {
		t.log.Fatal(err)
		return err
	}
	source.Push(t.in, f, file)

	if t.ctx.Flags.OneFile {
		return out.WriteLine(fmt.Sprintf("\n! In File: %s", file))
	}
	outPath := bmadFileName(file)
	if err := out.WriteLine(fmt.Sprintf("call, file = %s", outPath)); err != nil {
		return err
	}
	t.pushOutput(outPath)
	return nil
}

func (t *Translator) dispatchUse(words []string, out *wrap.Writer) error {
	if len(words) == 3 {
		t.ctx.Use = words[2]
	} else {
		params, _ := t.ctx.parameterDict(words[2:])
		if seq, ok := params.Get("sequence"); ok {
			t.ctx.Use = seq
		}
		if period, ok := params.Get("period"); ok {
			t.ctx.Use = period
		}
	}
	return out.WriteLine("use, " + t.ctx.Use)
}

func (t *Translator) dispatchBeam(words []string, out *wrap.Writer) error {
	params, _ := t.ctx.parameterDict(words[2:])
	for _, key := range beamKeys {
		val, ok := params.Get(key)
		if !ok {
			continue
		}
		switch key {
		case "particle":
			if err := out.WriteLine("parameter[particle] = " + t.ctx.rewriteExpr(val, "")); err != nil {
				return err
			}
		case "energy":
			if err := out.WriteLine("parameter[E_tot] = " + t.ctx.rewriteExpr(val, "energy")); err != nil {
				return err
			}
		case "pc":
			if err := out.WriteLine("parameter[p0c] = " + t.ctx.rewriteExpr(val, "pc")); err != nil {
				return err
			}
		case "gamma":
			line := "parameter[E_tot] = mass_of(parameter[particle]) * " + addParens(t.ctx.rewriteExpr(val, ""), false)
			if err := out.WriteLine(line); err != nil {
				return err
			}
		case "npart":
			if err := out.WriteLine("parameter[n_part] = " + t.ctx.rewriteExpr(val, "")); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Translator) dispatchTwiss(words []string, out *wrap.Writer) error {
	params, _ := t.ctx.parameterDict(words)
	for _, key := range twissKeyOrder {
		val, ok := params.Get(key)
		if !ok {
			continue
		}
		target := twissKeys[key]
		expr := t.ctx.rewriteExpr(val, "")
		if target.twopi {
			expr = "twopi * " + addParens(expr, false)
		}
		if err := out.WriteLine(fmt.Sprintf("%s[%s] = %s", target.block, target.bmadKey, expr)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Translator) dispatchVarAssign(words []string, loc source.Location, out *wrap.Writer) error {
	name := words[0]
	value := t.ctx.rewriteExpr(strings.Join(words[2:], ""), name)

	if t.ctx.varNames[name] {
		t.log.WarnAt(diag.DuplicateVariable, loc,
			"duplicate variable name %q; the lattice file needs manual review here", name)
	} else {
		t.ctx.varNames[name] = true
	}

	if strings.Contains(value, "[") || !t.ctx.Flags.PrependVars {
		return out.WriteLine(name + " = " + value)
	}
	t.ctx.SetList = append(t.ctx.SetList, varAssign{Name: name, Expr: value})
	return nil
}

func (t *Translator) dispatchAttrAssign(lhs string, rhs []string, out *wrap.Writer) error {
	elemName, param, _ := strings.Cut(lhs, "->")
	value := t.ctx.rewriteExpr(strings.Join(rhs, ""), param)
	name := fmt.Sprintf("%s[%s]", elemName, t.ctx.bmadParamName(param, elemName))
	return out.WriteLine(name + " = " + value)
}
