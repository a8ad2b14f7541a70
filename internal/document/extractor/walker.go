package extractor

import (
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// sameLineEpsilon absorbs float noise when comparing line origins.
const sameLineEpsilon = 0.01

// textMatrix is the a b c d e f form of a PDF text matrix
type textMatrix [6]float64

var identity = textMatrix{1, 0, 0, 1, 0, 0}

func (m textMatrix) translate(tx, ty float64) textMatrix {
	m[4] = tx*m[0] + ty*m[2] + m[4]
	m[5] = tx*m[1] + ty*m[3] + m[5]
	return m
}

// walker turns the text operators of one page into runs. It tracks only the
// text state needed for line detection: the text and line matrices and the leading.
type walker struct {
	contents pdf.Value
	fonts    pdf.Value
	opts     Options
	encoders map[string]pdf.TextEncoding
	enc      pdf.TextEncoding
	saved    []pdf.TextEncoding // q/Q; the font is part of the graphics state
	tm       textMatrix
	tlm      textMatrix
	leading  float64
	runs     []TextRun
}

func newWalker(leaf pageLeaf, opts Options) *walker {
	return &walker{
		contents: leaf.v.Key("Contents"),
		fonts:    leaf.resources.Key("Font"),
		opts:     opts,
		encoders: make(map[string]pdf.TextEncoding),
		tm:       identity,
		tlm:      identity,
	}
}

func (w *walker) walk() []TextRun {
	switch contents := w.contents; contents.Kind() {
	case pdf.Stream:
		pdf.Interpret(contents, w.do)
	case pdf.Array:
		for i := 0; i < contents.Len(); i++ {
			if strm := contents.Index(i); strm.Kind() == pdf.Stream {
				pdf.Interpret(strm, w.do)
			}
		}
	}

	if w.opts.LineBreaks == LineBreaksGeometry {
		w.inferLineBreaks()
	}
	return w.runs
}

func (w *walker) do(stk *pdf.Stack, op string) {
	n := stk.Len()
	args := make([]pdf.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = stk.Pop()
	}

	switch op {
	case "q":
		w.saved = append(w.saved, w.enc)
	case "Q":
		if n := len(w.saved); n > 0 {
			w.enc = w.saved[n-1]
			w.saved = w.saved[:n-1]
		}
	case "BT":
		w.tm = identity
		w.tlm = identity
	case "Tf":
		if len(args) == 2 {
			w.enc = w.encoder(args[0].Name())
		}
	case "TL":
		if len(args) == 1 {
			w.leading = args[0].Float64()
		}
	case "TD":
		if len(args) == 2 {
			w.leading = -args[1].Float64()
			w.moveLine(args[0].Float64(), args[1].Float64(), false)
		}
	case "Td":
		if len(args) == 2 {
			w.moveLine(args[0].Float64(), args[1].Float64(), false)
		}
	case "T*":
		w.nextLine()
	case "Tm":
		if len(args) == 6 {
			var m textMatrix
			for i := range m {
				m[i] = args[i].Float64()
			}
			w.tm = m
			w.tlm = m
			w.lineMoved(false)
		}
	case "Tj":
		if len(args) == 1 {
			w.emit(w.decode(args[0].RawString()))
		}
	case "'":
		if len(args) == 1 {
			w.nextLine()
			w.emit(w.decode(args[0].RawString()))
		}
	case "\"":
		if len(args) == 3 {
			w.nextLine()
			w.emit(w.decode(args[2].RawString()))
		}
	case "TJ":
		if len(args) == 1 {
			w.emit(w.decodeArray(args[0]))
		}
	}
}

func (w *walker) nextLine() {
	w.moveLine(0, -w.leading, true)
}

func (w *walker) moveLine(tx, ty float64, forced bool) {
	w.tlm = w.tlm.translate(tx, ty)
	w.tm = w.tlm
	w.lineMoved(forced)
}

// lineMoved marks the previous run as line-ending when the new line origin
// leaves its line. T*, ' and " always start a new line.
func (w *walker) lineMoved(forced bool) {
	if w.opts.LineBreaks != LineBreaksExplicit || len(w.runs) == 0 {
		return
	}
	last := &w.runs[len(w.runs)-1]
	if forced || math.Abs(w.tlm[5]-last.Y) > sameLineEpsilon {
		last.HasLineBreak = true
	}
}

func (w *walker) inferLineBreaks() {
	for i := 0; i+1 < len(w.runs); i++ {
		if math.Abs(w.runs[i+1].Y-w.runs[i].Y) > w.opts.GeometryTolerance {
			w.runs[i].HasLineBreak = true
		}
	}
}

func (w *walker) emit(content string) {
	if content == "" {
		return
	}
	w.runs = append(w.runs, TextRun{
		Content: content,
		X:       w.tm[4],
		Y:       w.tm[5],
	})
}

func (w *walker) encoder(font string) pdf.TextEncoding {
	if enc, ok := w.encoders[font]; ok {
		return enc
	}
	enc := pdf.Font{V: w.fonts.Key(font)}.Encoder()
	w.encoders[font] = enc
	return enc
}

func (w *walker) decode(raw string) string {
	if w.enc == nil {
		return raw
	}
	return w.enc.Decode(raw)
}

// decodeArray joins the strings of a TJ array; a kerning adjustment of at least
// WordGap becomes a single space.
func (w *walker) decodeArray(v pdf.Value) string {
	var sb strings.Builder
	for i := 0; i < v.Len(); i++ {
		el := v.Index(i)
		switch el.Kind() {
		case pdf.String:
			sb.WriteString(w.decode(el.RawString()))
		case pdf.Integer, pdf.Real:
			if -el.Float64() >= w.opts.WordGap && sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}
