package palette

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// SplitArgs takes arguments and splits them using the provided split characters.
func SplitArgs(args []string, splitRunes string) []string {
	finalArgs := make([]string, 0)
	for _, arg := range args {
		finalArgs = append(finalArgs, strings.FieldsFunc(arg, func(c rune) bool {
			return strings.ContainsRune(splitRunes, c)
		})...)
	}
	return finalArgs
}

func hexToColor(hex string) (color.NRGBA, error) {
	hex = strings.ToLower(strings.TrimPrefix(hex, "#"))

	var c color.NRGBA
	c.A = 0xff
	var n int
	var err error
	switch len(hex) {
	case 3:
		n, err = fmt.Sscanf(hex, "%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R |= c.R << 4
		c.G |= c.G << 4
		c.B |= c.B << 4
		n++
	case 4:
		n, err = fmt.Sscanf(hex, "%1x%1x%1x%1x", &c.R, &c.G, &c.B, &c.A)
		c.R |= c.R << 4
		c.G |= c.G << 4
		c.B |= c.B << 4
		c.A |= c.A << 4
	case 6:
		n, err = fmt.Sscanf(hex, "%02x%02x%02x", &c.R, &c.G, &c.B)
		n++
	case 8:
		n, err = fmt.Sscanf(hex, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		return color.NRGBA{}, fmt.Errorf("%s is not a hex color", hex)
	}
	if err != nil {
		return color.NRGBA{}, err
	}
	if n != 4 {
		return color.NRGBA{}, fmt.Errorf("%s is not a hex color", hex)
	}
	return c, nil
}

func tupleToColor(s string) (color.NRGBA, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("%s is not an RGB or RGBA tuple", s)
	}
	v := [4]uint8{3: 0xff}
	for i, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%s is not an RGB or RGBA tuple", s)
		}
		v[i] = uint8(n)
	}
	return color.NRGBA{v[0], v[1], v[2], v[3]}, nil
}

// ParseColor parses an RGB tuple, hex code, number 0-255 (gray) or SVG color
// name. RGBA tuples and hex codes with alpha are only accepted if withAlpha is
// set.
func ParseColor(arg string, withAlpha bool) (color.NRGBA, error) {
	if commas := strings.Count(arg, ","); commas == 2 || (withAlpha && commas == 3) {
		c, err := tupleToColor(arg)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%s is not a valid color tuple. Example: 25,200,150", arg)
		}
		return c, nil
	}

	// Short hex codes need the # so they aren't confused with gray levels
	if strings.HasPrefix(arg, "#") || len(arg) == 6 || len(arg) == 8 {
		if c, err := hexToColor(arg); err == nil {
			if c.A != 0xff && !withAlpha {
				return color.NRGBA{}, fmt.Errorf("%s: alpha is not allowed here", arg)
			}
			return c, nil
		}
	}

	if n, err := strconv.Atoi(arg); err == nil {
		if n > 255 || n < 0 {
			return color.NRGBA{}, fmt.Errorf("single numbers like %d must be in the range 0-255", n)
		}
		return color.NRGBA{uint8(n), uint8(n), uint8(n), 255}, nil
	}

	if htmlColor, ok := colornames.Map[strings.ToLower(arg)]; ok {
		return color.NRGBAModel.Convert(htmlColor).(color.NRGBA), nil
	}

	return color.NRGBA{}, fmt.Errorf("%s not recognized as an RGB tuple, hex code, number 0-255, or SVG color name", arg)
}

// ParseColors parses a space separated list of opaque colors.
func ParseColors(arg string) ([]color.NRGBA, error) {
	args := SplitArgs([]string{arg}, " ")
	colors := make([]color.NRGBA, len(args))
	for i, a := range args {
		c, err := ParseColor(a, false)
		if err != nil {
			return nil, err
		}
		colors[i] = c
	}
	return colors, nil
}
