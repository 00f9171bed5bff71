package madxbmad

import (
	"fmt"
	"strings"

	"github.com/accelxlate/madxbmad/internal/diag"
	"github.com/accelxlate/madxbmad/internal/source"
	"github.com/accelxlate/madxbmad/internal/wrap"
)

// startSequence begins a `name: sequence, l = ..., refer = ..., refpos = ...`
// block: spec.md §4.E. In superimpose mode it also emits the mark/drift/line
// skeleton immediately.
func (t *Translator) startSequence(words []string, loc source.Location, out *wrap.Writer) error {
	seq := NewSequence(words[0])
	if len(words) > 4 {
		params, malformed := t.ctx.parameterDict(words[4:])
		if malformed {
			t.log.WarnAt(diag.ParserMalformation, loc, "malformed parameter list for sequence %q", words[0])
		}
		if l, ok := params.Get("l"); ok {
			seq.Length = l
		} else {
			seq.Length = "0"
		}
		if refer, ok := params.Get("refer"); ok {
			seq.Refer = refer
		}
		if refpos, ok := params.Get("refpos"); ok {
			seq.Refpos = refpos
		}
	}

	t.ctx.InSequence = true
	t.ctx.CurrentSeq = seq

	if !t.ctx.Flags.Superimpose {
		return nil
	}
	if err := out.WriteLine(fmt.Sprintf("%s_mark: null_ele", seq.Name)); err != nil {
		return err
	}
	if err := out.WriteLine(fmt.Sprintf("%s_drift: drift, l = %s", seq.Name, seq.Length)); err != nil {
		return err
	}
	return out.WriteLine(fmt.Sprintf("%s: line = (%s_mark, %s_drift)", seq.Name, seq.Name, seq.Name))
}

// sequenceMember handles one command while a sequence is open, returning
// handled=false if words does not match any of the member shapes §4.E
// describes (in which case the caller falls through to ordinary dispatch).
func (t *Translator) sequenceMember(words []string, loc source.Location, out *wrap.Writer) (bool, error) {
	seq := t.ctx.CurrentSeq

	var ele *Element
	var eleName string
	isEle := true
	emit := false

	_, alreadyDefined := t.ctx.Elements[words[0]]

	switch {
	case len(words) >= 3 && words[0] == words[2] && words[1] == ":":
		ele = t.ctx.defineElement(words, loc)
		if ele == nil {
			return true, nil
		}
		eleName = ele.Name

	case alreadyDefined:
		cloneWords := append([]string{words[0], ":"}, words...)
		ele = t.ctx.defineElement(cloneWords, loc)
		if ele == nil {
			return true, nil
		}
		eleName = ele.Name
		if ele.Params.Len() > 0 {
			base := t.ctx.Elements[words[0]]
			base.Count++
			eleName = fmt.Sprintf("%s__%d", words[0], base.Count)
			ele.Name = eleName
			t.ctx.Elements[eleName] = ele
			emit = true
		}

	case len(words) >= 2 && words[1] == ":":
		ele = t.ctx.defineElement(words, loc)
		if ele == nil {
			return true, nil
		}
		eleName = ele.Name
		seq.Members.Set(eleName, ele)
		emit = true

	default:
		if len(words) < 2 || words[1] != "," {
			return false, nil
		}
		isEle = false
	}

	if isEle {
		if emit {
			if err := out.WriteLine(t.ctx.emitElement(ele)); err != nil {
				return true, err
			}
		}
		return true, t.placeMember(seq, ele, eleName, out)
	}

	return true, t.placeSubSequence(words, loc, seq, out)
}

// placeMember computes ele's offset within seq and emits either a
// superimpose directive or a synthesized drift plus line-accumulator entry,
// per spec.md §4.E steps 2-4.
func (t *Translator) placeMember(seq *Sequence, ele *Element, eleName string, out *wrap.Writer) error {
	offset := t.ctx.rewriteExpr(ele.At, "")

	if ele.FromRefEle != "" {
		fromEle, ok := seq.Members.Get(ele.FromRefEle)
		if !ok {
			t.log.Warn(diag.AmbiguousReference, "sequence %q: %q is not a known member to reference from", seq.Name, ele.FromRefEle)
		} else {
			offset += " + " + addParens(t.ctx.rewriteExpr(fromEle.At, ""), false)
			if l, ok := fromEle.Params.Get("l"); ok {
				lExpr := addParens(t.ctx.rewriteExpr(l, ""), false)
				// Known quirk (spec.md §9): original_source divides this
				// length by 2 via string concatenation, not arithmetic;
				// preserved here as a literal " / 2" suffix.
				switch seq.Refer {
				case "entry":
					offset += " + " + lExpr + " / 2"
				case "exit":
					offset += " - " + lExpr + " / 2"
				}
			}
		}
	}

	if t.ctx.Flags.Superimpose {
		return out.WriteLine(fmt.Sprintf("superimpose, element = %s, ref = %s_mark, offset = %s, ele_origin = %s",
			eleName, seq.Name, offset, sequenceRefer[seq.Refer]))
	}

	lastOffset := offset
	driftName := fmt.Sprintf("drft%d_%s", seq.DriftCount, seq.Name)
	driftLine := fmt.Sprintf("%s: drift, l = %s", driftName, offset)
	seq.DriftCount++

	length := ""
	if l, ok := ele.Params.Get("l"); ok {
		length = l
	} else if parent, ok := t.ctx.Elements[ele.MadxInherit]; ok {
		if l, ok := parent.Params.Get("l"); ok {
			length = l
		}
	}
	if length != "" {
		length = addParens(t.ctx.rewriteExpr(length, ""), false)
	}

	switch seq.Refer {
	case "entry":
		if length != "" {
			lastOffset += " + " + length
		}
	case "centre":
		if length != "" {
			driftLine += " - " + length + "/2"
			lastOffset += " + " + length + "/2"
		}
	default:
		if length != "" {
			driftLine += " - " + length
		}
	}

	if seq.LastEleOffset != "" {
		driftLine += " - " + addParens(seq.LastEleOffset, false)
	}
	if err := out.WriteLine(driftLine); err != nil {
		return err
	}
	seq.FlattenedLine = append(seq.FlattenedLine, driftName, eleName)
	seq.LastEleOffset = lastOffset
	return nil
}

// placeSubSequence handles a nested-sequence reference ("name, at = X"
// where name is a previously defined Sequence, not an Element), the fourth
// member kind spec.md §4.E describes.
func (t *Translator) placeSubSequence(words []string, loc source.Location, seq *Sequence, out *wrap.Writer) error {
	dlist := append([]string{words[0], ":", "sequence"}, words[1:]...)
	ele := t.ctx.defineElement(dlist, loc)
	if ele == nil {
		return nil
	}

	sub, ok := t.ctx.Sequences.Get(ele.Name)
	if !ok {
		t.log.WarnAt(diag.AmbiguousReference, loc, "%q is neither a known element nor a known sequence", words[0])
		return nil
	}

	offset := t.ctx.rewriteExpr(ele.At, "")
	if ele.FromRefEle != "" {
		if fromEle, ok := seq.Members.Get(ele.FromRefEle); ok {
			offset += " - " + addParens(t.ctx.rewriteExpr(fromEle.At, ""), false)
		}
	}

	lastOffset := offset
	length := addParens(t.ctx.rewriteExpr(sub.Length, ""), false)
	driftName := fmt.Sprintf("drft%d_%s", seq.DriftCount, seq.Name)
	driftLine := fmt.Sprintf("%s: drift, l = %s", driftName, offset)
	seq.DriftCount++

	switch {
	case sub.Refpos != "":
		refposEle, _ := sub.Members.Get(sub.Refpos)
		if refposEle != nil {
			offset += " - " + addParens(refposEle.At, false)
			lastOffset += " + " + refposEle.At + " - " + addParens(sub.Length, false)
		}
	case seq.Refer == "entry":
		if length != "" {
			lastOffset += " + " + length
		}
	case seq.Refer == "centre":
		offset += " - " + addParens(length, false) + "/2"
		if length != "" {
			driftLine += " - " + length + "/2"
			lastOffset += " + " + length + "/2"
		}
	default:
		offset += " - " + addParens(length, false)
		if length != "" {
			driftLine += " - " + length
		}
	}

	if t.ctx.Flags.Superimpose {
		directive := fmt.Sprintf("superimpose, element = %s_mark, ref = %s_mark, offset = %s", ele.Name, seq.Name, offset)
		t.ctx.SuperList = append(t.ctx.SuperList, directive)
		return out.WriteLine("!!** " + directive)
	}

	if seq.LastEleOffset != "" {
		driftLine += " - " + addParens(seq.LastEleOffset, false)
	}
	if err := out.WriteLine(driftLine); err != nil {
		return err
	}
	seq.FlattenedLine = append(seq.FlattenedLine, driftName, ele.Name)
	seq.LastEleOffset = lastOffset
	return nil
}

// endSequence registers the completed sequence and, in line mode, emits the
// final filler drift and the flattened line definition.
func (t *Translator) endSequence(out *wrap.Writer) error {
	seq := t.ctx.CurrentSeq
	t.ctx.InSequence = false
	t.ctx.Sequences.Set(seq.Name, seq)

	if t.ctx.Flags.Superimpose {
		return nil
	}

	offset := seq.Length
	if seq.LastEleOffset != "" {
		offset = fmt.Sprintf("%s - %s", seq.Length, addParens(seq.LastEleOffset, false))
	}
	driftName := fmt.Sprintf("drft%d_%s", seq.DriftCount, seq.Name)
	if err := out.WriteLine(fmt.Sprintf("%s: drift, l = %s", driftName, offset)); err != nil {
		return err
	}

	seq.FlattenedLine = append(seq.FlattenedLine, driftName)
	return out.WriteLine(fmt.Sprintf("%s: line = (%s)", seq.Name, strings.Join(seq.FlattenedLine, ", ")))
}
