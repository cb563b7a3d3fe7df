package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	unknown tokenKind = iota
	comment

	// punctuation
	comma
	dot
	dotdot
	colon
	doubleColon
	leftParen
	rightParen
	leftBracket
	rightBracket
	leftBrace
	rightBrace
	assign // =

	// binary operators
	plus
	minus
	times
	divide
	modulus
	greater
	less
	eq
	geq
	leq
	neq
	andKeyword
	orKeyword

	// unary
	notKeyword

	// keywords
	onKeyword
	atKeyword
	withKeyword
	doKeyword
	toKeyword
	byKeyword
	inKeyword
	ifKeyword
	elseKeyword
	forKeyword
	whileKeyword
	repeatKeyword
	untilKeyword
	moveKeyword
	rotateKeyword
	refreshKeyword
	afterKeyword
	waitKeyword
	closeKeyword
	loadKeyword
	playKeyword
	copyKeyword
	enumKeyword

	// literals
	identifier
	trueLiteral
	falseLiteral
	stringLiteral
	numberLiteral
	timeLiteral
)

var keywords = map[string]tokenKind{
	"on":      onKeyword,
	"at":      atKeyword,
	"with":    withKeyword,
	"do":      doKeyword,
	"to":      toKeyword,
	"by":      byKeyword,
	"in":      inKeyword,
	"if":      ifKeyword,
	"else":    elseKeyword,
	"for":     forKeyword,
	"while":   whileKeyword,
	"repeat":  repeatKeyword,
	"until":   untilKeyword,
	"move":    moveKeyword,
	"rotate":  rotateKeyword,
	"refresh": refreshKeyword,
	"after":   afterKeyword,
	"wait":    waitKeyword,
	"close":   closeKeyword,
	"load":    loadKeyword,
	"play":    playKeyword,
	"copy":    copyKeyword,
	"enum":    enumKeyword,
	"and":     andKeyword,
	"or":      orKeyword,
	"not":     notKeyword,
	"true":    trueLiteral,
	"false":   falseLiteral,
}

type position struct {
	line     int
	col      int
	filename string
}

func (p position) String() string {
	if p.filename != "" {
		return fmt.Sprintf("%s [%d:%d]", p.filename, p.line, p.col)
	}
	return fmt.Sprintf("[%d:%d]", p.line, p.col)
}

type token struct {
	kind    tokenKind
	pos     position
	payload string
}

func (t token) String() string {
	switch t.kind {
	case comma:
		return ","
	case dot:
		return "."
	case dotdot:
		return ".."
	case colon:
		return ":"
	case doubleColon:
		return "::"
	case leftParen:
		return "("
	case rightParen:
		return ")"
	case leftBracket:
		return "["
	case rightBracket:
		return "]"
	case leftBrace:
		return "{"
	case rightBrace:
		return "}"
	case assign:
		return "="

	case plus:
		return "+"
	case minus:
		return "-"
	case times:
		return "*"
	case divide:
		return "/"
	case modulus:
		return "%"
	case greater:
		return ">"
	case less:
		return "<"
	case eq:
		return "=="
	case geq:
		return ">="
	case leq:
		return "<="
	case neq:
		return "!="

	case identifier:
		return t.payload
	case trueLiteral:
		return "true"
	case falseLiteral:
		return "false"
	case stringLiteral:
		return fmt.Sprintf("string(%s)", t.payload)
	case numberLiteral:
		return fmt.Sprintf("number(%s)", t.payload)
	case timeLiteral:
		return fmt.Sprintf("time(%sms)", t.payload)
	case unknown:
		return fmt.Sprintf("unknown(%s)", t.payload)
	}

	for word, kind := range keywords {
		if kind == t.kind {
			return word
		}
	}
	return "<unknown>"
}

type tokenizer struct {
	source   []rune
	index    int
	filename string
	line     int
	col      int
}

func newTokenizer(source, filename string) *tokenizer {
	return &tokenizer{
		source:   []rune(source),
		index:    0,
		filename: filename,
		line:     1,
		col:      0,
	}
}

func (t *tokenizer) isEOF() bool {
	return t.index >= len(t.source)
}

func (t *tokenizer) next() rune {
	char := t.source[t.index]
	t.index++

	if char == '\n' {
		t.line++
		t.col = 0
	} else {
		t.col++
	}

	return char
}

func (t *tokenizer) peek() rune {
	return t.source[t.index]
}

func (t *tokenizer) peekAhead(n int) rune {
	if t.index+n >= len(t.source) {
		return ' '
	}
	return t.source[t.index+n]
}

func (t *tokenizer) readUntil(ch rune) string {
	read := []rune{}
	for !t.isEOF() && t.peek() != ch {
		read = append(read, t.next())
	}
	return string(read)
}

func (t *tokenizer) readIdentifier() string {
	ident := []rune{}
	for !t.isEOF() {
		ch := t.peek()
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			ident = append(ident, t.next())
		} else {
			break
		}
	}
	return string(ident)
}

func (t *tokenizer) readNumber() string {
	literal := []rune{}
	sawDot := false

	for !t.isEOF() {
		ch := t.peek()
		if unicode.IsDigit(ch) {
			literal = append(literal, t.next())
		} else if ch == '.' && !sawDot {
			// two dots form a range operator, not a decimal point
			if t.peekAhead(1) == '.' {
				break
			}
			sawDot = true
			literal = append(literal, t.next())
		} else {
			break
		}
	}

	return string(literal)
}

func (t *tokenizer) pos() position {
	return position{
		line:     t.line,
		col:      t.col,
		filename: t.filename,
	}
}

func (t *tokenizer) nextToken() token {
	ch := t.next()

	switch ch {
	case ',':
		return token{kind: comma, pos: t.pos()}
	case '.':
		if !t.isEOF() && t.peek() == '.' {
			pos := t.pos()
			t.next()
			return token{kind: dotdot, pos: pos}
		}
		return token{kind: dot, pos: t.pos()}
	case ':':
		if !t.isEOF() && t.peek() == ':' {
			pos := t.pos()
			t.next()
			return token{kind: doubleColon, pos: pos}
		}
		return token{kind: colon, pos: t.pos()}
	case '(':
		return token{kind: leftParen, pos: t.pos()}
	case ')':
		return token{kind: rightParen, pos: t.pos()}
	case '[':
		return token{kind: leftBracket, pos: t.pos()}
	case ']':
		return token{kind: rightBracket, pos: t.pos()}
	case '{':
		return token{kind: leftBrace, pos: t.pos()}
	case '}':
		return token{kind: rightBrace, pos: t.pos()}
	case '=':
		if !t.isEOF() && t.peek() == '=' {
			pos := t.pos()
			t.next()
			return token{kind: eq, pos: pos}
		}
		return token{kind: assign, pos: t.pos()}
	case '>':
		if !t.isEOF() && t.peek() == '=' {
			pos := t.pos()
			t.next()
			return token{kind: geq, pos: pos}
		}
		return token{kind: greater, pos: t.pos()}
	case '<':
		if !t.isEOF() && t.peek() == '=' {
			pos := t.pos()
			t.next()
			return token{kind: leq, pos: pos}
		}
		return token{kind: less, pos: t.pos()}
	case '!':
		if !t.isEOF() && t.peek() == '=' {
			pos := t.pos()
			t.next()
			return token{kind: neq, pos: pos}
		}
		return token{kind: unknown, pos: t.pos(), payload: "!"}
	case '+':
		return token{kind: plus, pos: t.pos()}
	case '-':
		return token{kind: minus, pos: t.pos()}
	case '*':
		return token{kind: times, pos: t.pos()}
	case '/':
		if !t.isEOF() && t.peek() == '/' {
			pos := t.pos()
			t.next()
			return token{kind: comment, pos: pos, payload: t.readUntil('\n')}
		}
		return token{kind: divide, pos: t.pos()}
	case '%':
		return token{kind: modulus, pos: t.pos()}
	case '"':
		pos := t.pos()
		builder := strings.Builder{}
		for !t.isEOF() && t.peek() != '"' {
			ch := t.next()
			if ch == '\\' && !t.isEOF() {
				switch next := t.next(); next {
				case 'n':
					ch = '\n'
				case 't':
					ch = '\t'
				case 'r':
					ch = '\r'
				default:
					ch = next
				}
			}
			builder.WriteRune(ch)
		}
		if !t.isEOF() {
			t.next() // closing quote
		}
		return token{kind: stringLiteral, pos: pos, payload: builder.String()}
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		pos := t.pos()
		payload := string(ch) + t.readNumber()

		// a unit suffix turns the number into a time literal; time is held
		// in milliseconds everywhere past the lexer
		if !t.isEOF() && unicode.IsLetter(t.peek()) {
			suffix := t.readIdentifier()
			n, err := strconv.ParseFloat(payload, 64)
			if err != nil {
				return token{kind: unknown, pos: pos, payload: payload + suffix}
			}
			switch suffix {
			case "ms":
				return token{kind: timeLiteral, pos: pos, payload: formatNumber(n)}
			case "s":
				return token{kind: timeLiteral, pos: pos, payload: formatNumber(n * 1000)}
			}
			return token{kind: unknown, pos: pos, payload: payload + suffix}
		}

		return token{kind: numberLiteral, pos: pos, payload: payload}
	default:
		pos := t.pos()
		payload := string(ch) + t.readIdentifier()
		if kind, ok := keywords[payload]; ok {
			return token{kind: kind, pos: pos}
		}
		if !unicode.IsLetter(ch) && ch != '_' {
			return token{kind: unknown, pos: pos, payload: payload}
		}
		return token{kind: identifier, pos: pos, payload: payload}
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func (t *tokenizer) tokenize() []token {
	tokens := []token{}

	for !t.isEOF() {
		for !t.isEOF() && unicode.IsSpace(t.peek()) {
			t.next()
		}
		if t.isEOF() {
			break
		}

		next := t.nextToken()
		if next.kind == comment {
			continue
		}
		tokens = append(tokens, next)
	}

	return tokens
}
