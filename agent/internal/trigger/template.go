package trigger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Template argument positions as written in %N$ and %[N] placeholders.
const (
	argValue  = 1
	argLower  = 2
	argUpper  = 3
	argTarget = 4
)

type templateArgs struct {
	value, lower, upper float64
	target              string
}

func (a templateArgs) number(pos int) float64 {
	switch pos {
	case argLower:
		return a.lower
	case argUpper:
		return a.upper
	default:
		return a.value
	}
}

// placeholder is one parsed %-directive.
type placeholder struct {
	pos  int    // 0 when the directive names no position
	spec string // flags, width and precision
	verb byte
}

// expand formats tmpl against args. A placeholder may name its argument as
// %N$ or %[N] anywhere before the verb; a placeholder without a position takes
// the next argument in order, counted only over placeholders without one.
func expand(tmpl string, args templateArgs) (string, error) {
	var b strings.Builder
	next := 0
	for i := 0; i < len(tmpl); {
		if tmpl[i] != '%' {
			b.WriteByte(tmpl[i])
			i++
			continue
		}
		p, n, err := parsePlaceholder(tmpl[i:])
		if err != nil {
			return "", fmt.Errorf("template %q offset %d: %w", tmpl, i, err)
		}
		i += n
		switch p.verb {
		case '%':
			b.WriteByte('%')
			continue
		case 'n':
			b.WriteByte('\n')
			continue
		}
		pos := p.pos
		if pos == 0 {
			next++
			pos = next
		}
		if pos > argTarget {
			return "", fmt.Errorf("template %q offset %d: no argument %d", tmpl, i-n, pos)
		}
		s, err := p.format(pos, args)
		if err != nil {
			return "", fmt.Errorf("template %q offset %d: %w", tmpl, i-n, err)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// parsePlaceholder parses the directive at the start of s, which begins with
// '%', and returns it with the number of bytes consumed.
func parsePlaceholder(s string) (placeholder, int, error) {
	var p placeholder
	i := 1
	if i < len(s) && s[i] == '%' {
		return placeholder{verb: '%'}, 2, nil
	}

	j := i
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	if j > i && j < len(s) && s[j] == '$' {
		pos, err := position(s[i:j])
		if err != nil {
			return p, 0, err
		}
		p.pos = pos
		i = j + 1
	}

	var spec strings.Builder
	for i < len(s) {
		c := s[i]
		switch {
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return p, 0, errors.New("unterminated argument index")
			}
			if p.pos != 0 {
				return p, 0, errors.New("argument position given twice")
			}
			pos, err := position(s[i+1 : i+end])
			if err != nil {
				return p, 0, err
			}
			p.pos = pos
			i += end + 1
		case isDigit(c) || strings.IndexByte("+-# .", c) >= 0:
			spec.WriteByte(c)
			i++
		default:
			p.spec = spec.String()
			p.verb = c
			return p, i + 1, nil
		}
	}
	return p, 0, errors.New("missing verb")
}

func position(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < argValue || n > argTarget {
		return 0, fmt.Errorf("argument index %q out of range [%d, %d]", s, argValue, argTarget)
	}
	return n, nil
}

func (p placeholder) format(pos int, args templateArgs) (string, error) {
	if pos == argTarget {
		switch p.verb {
		case 's', 'v', 'q':
			return fmt.Sprintf("%"+p.spec+string(p.verb), args.target), nil
		}
		return "", fmt.Errorf("%%%c cannot format the target name", p.verb)
	}
	x := args.number(pos)
	switch p.verb {
	case 'f', 'F', 'e', 'E', 'g', 'G':
		return fmt.Sprintf("%"+p.spec+string(p.verb), x), nil
	case 'd':
		return fmt.Sprintf("%"+p.spec+"d", int64(math.Round(x))), nil
	case 's', 'v':
		return fmt.Sprintf("%"+p.spec+"s", strconv.FormatFloat(x, 'f', -1, 64)), nil
	}
	return "", fmt.Errorf("%%%c cannot format a number", p.verb)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
