package model

import "fmt"

// Text encodings so enums read as words in JSON and logs.

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	v, ok := ParseSide(string(b))
	if !ok {
		return fmt.Errorf("model: unknown side %q", b)
	}
	*s = v
	return nil
}

func (f Family) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Family) UnmarshalText(b []byte) error {
	for _, v := range []Family{FamilyFuture, FamilyOption, FamilyGenie} {
		if v.String() == string(b) {
			*f = v
			return nil
		}
	}
	return fmt.Errorf("model: unknown family %q", b)
}

func (c CurveKind) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *CurveKind) UnmarshalText(b []byte) error {
	for k, name := range curveNames {
		if name == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("model: unknown curve %q", b)
}

func (o OptionType) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *OptionType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "":
		*o = OptionNone
	case "call":
		*o = OptionCall
	case "put":
		*o = OptionPut
	default:
		return fmt.Errorf("model: unknown option type %q", b)
	}
	return nil
}

// ParseTieBreak accepts "long" (S >= K pays the long) or "short" (S > K).
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "", "long":
		return TieLong, nil
	case "short":
		return TieShort, nil
	}
	return TieLong, fmt.Errorf("model: unknown tie break %q", s)
}
