package wordml

import (
	"errors"
	"strings"
)

// ErrMalformed is returned when markup cannot be tokenized at all.
var ErrMalformed = errors.New("malformed markup")

// TokenKind classifies a scanned token.
type TokenKind int

const (
	TextToken TokenKind = iota
	StartTagToken
	EndTagToken
	SelfClosingTagToken
	// OtherToken covers comments, processing instructions and declarations.
	OtherToken
	// CDataToken is a CDATA section; its content is character data.
	CDataToken
)

// Attr is a single attribute as written in the source. Value is not entity-decoded.
type Attr struct {
	Name  string
	Value string
}

// Token is one lexical unit of markup. Start and End are byte offsets into the
// scanned source; src[Start:End] reproduces the token exactly.
type Token struct {
	Kind  TokenKind
	Start int
	End   int
	Name  string
	Attrs []Attr
	// NameEnd is the offset just past the tag name, so src[NameEnd:End] is the
	// tag remainder (attributes and closing bracket).
	NameEnd int
}

// Attr returns the raw value of the named attribute.
func (t Token) Attr(name string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// DecodedAttr is Attr with character references resolved.
func (t Token) DecodedAttr(name string) (string, bool) {
	v, ok := t.Attr(name)
	if !ok {
		return "", false
	}
	return decodeText(v), true
}

// IsOpen reports whether the token opens an element named name, either as a start
// tag or as a self-closing tag.
func (t Token) IsOpen(name string) bool {
	return (t.Kind == StartTagToken || t.Kind == SelfClosingTagToken) && t.Name == name
}

// Scanner walks markup token by token without building a tree.
//
// In strict mode an unterminated construct is an error. In lenient mode the
// remainder of the input is returned as a text token, which is what the mutator and
// the raw text extractor want: they must keep working on markup that a parser
// would reject.
type Scanner struct {
	src    string
	pos    int
	strict bool
	err    error
}

// NewScanner returns a lenient scanner over src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: src}
}

func newStrictScanner(src string) *Scanner {
	return &Scanner{src: src, strict: true}
}

// Err returns the first error met by a strict scanner.
func (s *Scanner) Err() error { return s.err }

// Next returns the next token. ok is false at end of input or after an error.
func (s *Scanner) Next() (tok Token, ok bool) {
	if s.err != nil || s.pos >= len(s.src) {
		return Token{}, false
	}
	start := s.pos
	if s.src[start] != '<' || !s.looksLikeMarkup(start) {
		end := s.nextMarkup(start + 1)
		s.pos = end
		return Token{Kind: TextToken, Start: start, End: end}, true
	}

	rest := s.src[start:]
	switch {
	case strings.HasPrefix(rest, "<!--"):
		return s.scanDelimited(start, "-->", OtherToken)
	case strings.HasPrefix(rest, "<![CDATA["):
		return s.scanDelimited(start, "]]>", CDataToken)
	case strings.HasPrefix(rest, "<?"):
		return s.scanDelimited(start, "?>", OtherToken)
	case strings.HasPrefix(rest, "<!"):
		return s.scanDelimited(start, ">", OtherToken)
	case strings.HasPrefix(rest, "</"):
		return s.scanEndTag(start)
	default:
		return s.scanStartTag(start)
	}
}

// looksLikeMarkup reports whether the '<' at i begins a tag or declaration rather
// than a stray character in text.
func (s *Scanner) looksLikeMarkup(i int) bool {
	if i+1 >= len(s.src) {
		return false
	}
	c := s.src[i+1]
	if c == '/' {
		return i+2 < len(s.src) && isNameStart(s.src[i+2])
	}
	return c == '!' || c == '?' || isNameStart(c)
}

func (s *Scanner) nextMarkup(from int) int {
	for i := from; i < len(s.src); i++ {
		if s.src[i] == '<' && s.looksLikeMarkup(i) {
			return i
		}
	}
	return len(s.src)
}

func (s *Scanner) unterminated(start int) (Token, bool) {
	if s.strict {
		s.err = ErrMalformed
		return Token{}, false
	}
	s.pos = len(s.src)
	return Token{Kind: TextToken, Start: start, End: len(s.src)}, true
}

func (s *Scanner) scanDelimited(start int, closer string, kind TokenKind) (Token, bool) {
	idx := strings.Index(s.src[start+2:], closer)
	if idx < 0 {
		return s.unterminated(start)
	}
	end := start + 2 + idx + len(closer)
	s.pos = end
	return Token{Kind: kind, Start: start, End: end}, true
}

func (s *Scanner) scanEndTag(start int) (Token, bool) {
	i := start + 2
	nameStart := i
	for i < len(s.src) && isNameChar(s.src[i]) {
		i++
	}
	nameEnd := i
	gt := strings.IndexByte(s.src[i:], '>')
	if gt < 0 {
		return s.unterminated(start)
	}
	end := i + gt + 1
	s.pos = end
	return Token{
		Kind:    EndTagToken,
		Start:   start,
		End:     end,
		Name:    s.src[nameStart:nameEnd],
		NameEnd: nameEnd,
	}, true
}

func (s *Scanner) scanStartTag(start int) (Token, bool) {
	i := start + 1
	nameStart := i
	for i < len(s.src) && isNameChar(s.src[i]) {
		i++
	}
	tok := Token{Start: start, Name: s.src[nameStart:i], NameEnd: i}

	for {
		for i < len(s.src) && isSpace(s.src[i]) {
			i++
		}
		if i >= len(s.src) {
			return s.unterminated(start)
		}
		switch c := s.src[i]; {
		case c == '>':
			tok.Kind = StartTagToken
			tok.End = i + 1
			s.pos = tok.End
			return tok, true
		case c == '/':
			j := i + 1
			for j < len(s.src) && isSpace(s.src[j]) {
				j++
			}
			if j < len(s.src) && s.src[j] == '>' {
				tok.Kind = SelfClosingTagToken
				tok.End = j + 1
				s.pos = tok.End
				return tok, true
			}
			// A '/' that does not close the tag is noise; skip it.
			i++
		case isNameStart(c):
			var attr Attr
			var ok bool
			attr, i, ok = s.scanAttr(i)
			if !ok {
				return s.unterminated(start)
			}
			tok.Attrs = append(tok.Attrs, attr)
		default:
			// Producer garbage inside a tag: skip it rather than give up.
			i++
		}
	}
}

// scanAttr reads name[=value] starting at i. Values may be single- or
// double-quoted; unquoted values run to whitespace or the tag end.
func (s *Scanner) scanAttr(i int) (Attr, int, bool) {
	nameStart := i
	for i < len(s.src) && isNameChar(s.src[i]) {
		i++
	}
	attr := Attr{Name: s.src[nameStart:i]}
	j := i
	for j < len(s.src) && isSpace(s.src[j]) {
		j++
	}
	if j >= len(s.src) || s.src[j] != '=' {
		return attr, i, true
	}
	j++
	for j < len(s.src) && isSpace(s.src[j]) {
		j++
	}
	if j >= len(s.src) {
		return attr, j, false
	}
	if q := s.src[j]; q == '"' || q == '\'' {
		end := strings.IndexByte(s.src[j+1:], q)
		if end < 0 {
			return attr, j, false
		}
		attr.Value = s.src[j+1 : j+1+end]
		return attr, j + 1 + end + 1, true
	}
	valStart := j
	for j < len(s.src) && !isSpace(s.src[j]) && s.src[j] != '>' && s.src[j] != '/' {
		j++
	}
	attr.Value = s.src[valStart:j]
	return attr, j, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNameStart(c byte) bool {
	return c == '_' || c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c == '-' || c == '.' || (c >= '0' && c <= '9')
}
