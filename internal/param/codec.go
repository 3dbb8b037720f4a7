package param

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// codec holds the text grammar of one parameter kind.
type codec struct {
	// declare fills spec from declaration fields.
	declare func(spec *Spec, fields []string) error
	// arity is the number of argument fields one value spans.
	arity func(spec Spec) int
	// check validates a value of the right kind against spec bounds.
	check func(spec Spec, v Value) error
	// format renders a value as argument text.
	format func(v Value) string
	// parse reads a value from exactly arity(spec) fields.
	parse func(spec Spec, fields []string) (Value, error)
}

func one(Spec) int { return 1 }

func noCheck(Spec, Value) error { return nil }

var codecs = map[Kind]codec{
	KindFloat: {
		declare: declareRange(false),
		arity:   one,
		check:   checkRange,
		format:  func(v Value) string { return strconv.FormatFloat(v.num, 'f', -1, 64) },
		parse: func(_ Spec, f []string) (Value, error) {
			n, err := parseFloat(f[0])
			return Float(n), err
		},
	},
	KindInt: {
		declare: declareRange(true),
		arity:   one,
		check:   checkRange,
		format:  func(v Value) string { return strconv.Itoa(int(v.num)) },
		parse: func(_ Spec, f []string) (Value, error) {
			n, err := strconv.Atoi(f[0])
			return Int(n), err
		},
	},
	KindChoice: {
		declare: declareChoice,
		arity:   one,
		check:   checkChoice,
		format:  func(v Value) string { return strconv.Itoa(int(v.num)) },
		parse: func(_ Spec, f []string) (Value, error) {
			n, err := strconv.Atoi(f[0])
			return Choice(n), err
		},
	},
	KindColor: {
		declare: declareColor,
		arity:   colorArity,
		check:   checkColor,
		format: func(v Value) string {
			parts := make([]string, len(v.color))
			for i, c := range v.color {
				parts[i] = strconv.Itoa(c)
			}

			return strings.Join(parts, ",")
		},
		parse: func(_ Spec, f []string) (Value, error) { return parseColor(f) },
	},
	KindFile:   quotedCodec(File),
	KindFolder: quotedCodec(Folder),
	KindText: {
		declare: declareText,
		arity:   one,
		check:   noCheck,
		format:  func(v Value) string { return Quote(v.str) },
		parse: func(_ Spec, f []string) (Value, error) {
			s, err := unquoteField(f[0])
			return Text(s), err
		},
	},
	KindBool: {
		declare: func(spec *Spec, f []string) error {
			spec.Default = Bool(false)

			switch len(f) {
			case 0:
				return nil
			case 1:
				b, err := parseBool(f[0])
				spec.Default = Bool(b)

				return err
			default:
				return fmt.Errorf("bool takes at most 1 argument, got %d", len(f))
			}
		},
		arity: one,
		check: noCheck,
		format: func(v Value) string {
			if v.flag {
				return "1"
			}

			return "0"
		},
		parse: func(_ Spec, f []string) (Value, error) {
			b, err := parseBool(f[0])
			return Bool(b), err
		},
	},
}

func quotedCodec(ctor func(string) Value) codec {
	return codec{
		declare: func(spec *Spec, f []string) error {
			spec.Default = ctor("")

			switch len(f) {
			case 0:
				return nil
			case 1:
				s, err := unquoteField(f[0])
				spec.Default = ctor(s)

				return err
			default:
				return fmt.Errorf("%s takes at most 1 argument, got %d", spec.Kind, len(f))
			}
		},
		arity:  one,
		check:  noCheck,
		format: func(v Value) string { return Quote(v.str) },
		parse: func(_ Spec, f []string) (Value, error) {
			s, err := unquoteField(f[0])
			return ctor(s), err
		},
	}
}

// declareRange handles float(default[,min,max]) and int(default[,min,max]).
// Equal bounds mean the value is unbounded.
func declareRange(integer bool) func(*Spec, []string) error {
	return func(spec *Spec, f []string) error {
		if len(f) != 1 && len(f) != 3 {
			return fmt.Errorf("%s takes 1 or 3 arguments, got %d", spec.Kind, len(f))
		}

		nums := make([]float64, len(f))

		for i, field := range f {
			n, err := parseFloat(field)
			if err != nil {
				return err
			}

			if integer && n != math.Trunc(n) {
				return fmt.Errorf("%q is not an integer", field)
			}

			nums[i] = n
		}

		if len(nums) == 3 {
			spec.Min, spec.Max = nums[1], nums[2]
			if spec.Min > spec.Max {
				return fmt.Errorf("min %v greater than max %v", spec.Min, spec.Max)
			}
		}

		if integer {
			spec.Default = Int(int(nums[0]))
		} else {
			spec.Default = Float(nums[0])
		}

		return checkRange(*spec, spec.Default)
	}
}

func checkRange(s Spec, v Value) error {
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return errors.New("value is not finite")
	}

	if s.Min < s.Max && (v.num < s.Min || v.num > s.Max) {
		return fmt.Errorf("%v outside [%v,%v]", v.num, s.Min, s.Max)
	}

	return nil
}

// declareChoice handles choice([default,]"a","b",...).
func declareChoice(spec *Spec, f []string) error {
	def := 0

	if len(f) > 1 {
		if n, err := strconv.Atoi(f[0]); err == nil {
			def = n
			f = f[1:]
		}
	}

	if len(f) == 0 {
		return errors.New("choice needs at least one entry")
	}

	spec.Choices = make([]string, len(f))

	for i, field := range f {
		s, err := unquoteField(field)
		if err != nil {
			return err
		}

		spec.Choices[i] = s
	}

	spec.Default = Choice(def)

	return checkChoice(*spec, spec.Default)
}

func checkChoice(s Spec, v Value) error {
	if i := int(v.num); i < 0 || i >= len(s.Choices) {
		return fmt.Errorf("choice index %d outside [0,%d)", i, len(s.Choices))
	}

	return nil
}

func declareColor(spec *Spec, f []string) error {
	switch len(f) {
	case 0:
		spec.Default = Color(0, 0, 0)
		return nil
	case 3, 4:
	default:
		return fmt.Errorf("color takes 3 or 4 components, got %d", len(f))
	}

	v, err := parseColor(f)
	if err != nil {
		return err
	}

	spec.Default = v

	return checkColor(*spec, v)
}

// colorArity is 4 for colors declared with an alpha component, else 3.
func colorArity(s Spec) int {
	if len(s.Default.color) == 4 {
		return 4
	}

	return 3
}

func parseColor(f []string) (Value, error) {
	comps := make([]int, len(f))

	for i, field := range f {
		n, err := strconv.Atoi(field)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not an integer", field)
		}

		comps[i] = n
	}

	return Color(comps...), nil
}

func checkColor(s Spec, v Value) error {
	want := colorArity(s)
	if len(v.color) != want {
		return fmt.Errorf("color needs %d components, got %d", want, len(v.color))
	}

	for _, c := range v.color {
		if c < 0 || c > 255 {
			return fmt.Errorf("color component %d outside [0,255]", c)
		}
	}

	return nil
}

// declareText handles text([multiline,]"default").
func declareText(spec *Spec, f []string) error {
	spec.Default = Text("")
	total := len(f)

	if len(f) == 2 {
		ml, err := parseBool(f[0])
		if err != nil {
			return err
		}

		spec.Multiline = ml
		f = f[1:]
	}

	switch len(f) {
	case 0:
		return nil
	case 1:
		s, err := unquoteField(f[0])
		spec.Default = Text(s)

		return err
	default:
		return fmt.Errorf("text takes at most 2 arguments, got %d", total)
	}
}

func parseFloat(s string) (float64, error) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}

	return n, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%q is not a boolean", s)
	}
}

// Quote renders s between double quotes, escaping backslashes and quotes.
func Quote(s string) string {
	var b strings.Builder

	b.Grow(len(s) + 2)
	b.WriteByte('"')

	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}

		b.WriteByte(s[i])
	}

	b.WriteByte('"')

	return b.String()
}

// Unquote reverses Quote. The input must start and end with a quote.
func Unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("%w: %q is not quoted", ErrSyntax, s)
	}

	var b strings.Builder

	body := s[1 : len(s)-1]

	for i := 0; i < len(body); i++ {
		c := body[i]

		switch {
		case c == '\\' && i+1 < len(body):
			i++
			b.WriteByte(body[i])
		case c == '\\' || c == '"':
			return "", fmt.Errorf("%w: stray %q in %s", ErrSyntax, c, s)
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

// unquoteField accepts a quoted or bare field.
func unquoteField(s string) (string, error) {
	if strings.HasPrefix(s, `"`) {
		return Unquote(s)
	}

	return s, nil
}

// SplitArgs splits argument text on commas that are outside quotes.
// Fields are trimmed of surrounding whitespace; quotes are kept so that
// kind-specific parsers can tell quoted from bare text. Blank input yields
// no fields.
func SplitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var (
		fields  []string
		cur     strings.Builder
		inQuote bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case inQuote && c == '\\' && i+1 < len(s):
			cur.WriteByte(c)
			i++
			cur.WriteByte(s[i])
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ',' && !inQuote:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}

	if inQuote {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrSyntax, s)
	}

	return append(fields, strings.TrimSpace(cur.String())), nil
}
