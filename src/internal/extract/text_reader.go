package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// tjSpaceThreshold is the TJ adjustment, in thousandths of a text space
// unit, past which a gap between two strings reads as a word break.
const tjSpaceThreshold = -200

// TextReader reads PDF pages with a pure Go parser. It needs no license and
// no network access. Text comes out in content stream order with a line
// break wherever the baseline moves.
type TextReader struct{}

// NewTextReader creates a TextReader
func NewTextReader() *TextReader {
	return &TextReader{}
}

// ReadPages implements PageReader
func (r *TextReader) ReadPages(ctx context.Context, path string) (pages []string, err error) {
	f, doc, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	// The parser panics on malformed objects
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("failed to parse pdf: %v", p)
		}
	}()

	numPages := doc.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := doc.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, pageText(page))
	}

	return pages, nil
}

type rawEncoding struct{}

func (rawEncoding) Decode(raw string) string { return raw }

// textState follows the parts of the PDF text state that decide line breaks.
type textState struct {
	fonts map[string]pdf.TextEncoding
	enc   pdf.TextEncoding

	y       float64
	leading float64

	lines  []string
	line   strings.Builder
	lineY  float64
	gapped bool
}

func pageText(page pdf.Page) string {
	st := &textState{
		fonts: make(map[string]pdf.TextEncoding),
		enc:   rawEncoding{},
	}
	for _, name := range page.Fonts() {
		st.fonts[name] = page.Font(name).Encoder()
	}

	contents := page.V.Key("Contents")
	switch contents.Kind() {
	case pdf.Stream:
		pdf.Interpret(contents, st.operator)
	case pdf.Array:
		for i := 0; i < contents.Len(); i++ {
			pdf.Interpret(contents.Index(i), st.operator)
		}
	}

	st.flush()
	return strings.Join(st.lines, "\n")
}

func (st *textState) operator(stk *pdf.Stack, op string) {
	n := stk.Len()
	args := make([]pdf.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = stk.Pop()
	}

	switch op {
	case "BT":
		st.y = 0
	case "Tf":
		if n != 2 {
			return
		}
		if enc, ok := st.fonts[args[0].Name()]; ok {
			st.enc = enc
		} else {
			st.enc = rawEncoding{}
		}
	case "TL":
		if n == 1 {
			st.leading = args[0].Float64()
		}
	case "Td", "TD":
		if n != 2 {
			return
		}
		if op == "TD" {
			st.leading = -args[1].Float64()
		}
		st.y += args[1].Float64()
		if args[0].Float64() > 0 {
			st.gapped = true
		}
	case "Tm":
		if n == 6 {
			st.y = args[5].Float64()
		}
	case "T*":
		st.y -= st.leading
	case "'", "\"":
		if n == 0 {
			return
		}
		st.y -= st.leading
		st.show(args[n-1].RawString())
	case "Tj":
		if n == 1 {
			st.show(args[0].RawString())
		}
	case "TJ":
		if n != 1 {
			return
		}
		arr := args[0]
		for i := 0; i < arr.Len(); i++ {
			v := arr.Index(i)
			switch v.Kind() {
			case pdf.String:
				st.show(v.RawString())
			case pdf.Integer, pdf.Real:
				if v.Float64() < tjSpaceThreshold {
					st.gapped = true
				}
			}
		}
	}
}

func (st *textState) show(raw string) {
	text := st.enc.Decode(raw)
	if text == "" {
		return
	}

	if st.line.Len() > 0 {
		switch {
		case st.y != st.lineY:
			st.flush()
		case st.gapped && !strings.HasSuffix(st.line.String(), " ") && !strings.HasPrefix(text, " "):
			st.line.WriteByte(' ')
		}
	}

	st.lineY = st.y
	st.gapped = false
	st.line.WriteString(text)
}

func (st *textState) flush() {
	if st.line.Len() == 0 {
		return
	}
	st.lines = append(st.lines, st.line.String())
	st.line.Reset()
}
