package quantize

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
)

// Matrices maps names to the error diffusion matrices of the dither library.
// "floydsteinberg" is absent since a nil matrix selects the classic
// sRGB implementation.
var Matrices = map[string]dither.ErrorDiffusionMatrix{
	"simple2d":            dither.Simple2D,
	"falsefloydsteinberg": dither.FalseFloydSteinberg,
	"jarvisjudiceninke":   dither.JarvisJudiceNinke,
	"atkinson":            dither.Atkinson,
	"stucki":              dither.Stucki,
	"burkes":              dither.Burkes,
	"sierra":              dither.Sierra,
	"sierra3":             dither.Sierra3,
	"tworowsierra":        dither.TwoRowSierra,
	"sierralite":          dither.SierraLite,
	"sierra2_4a":          dither.Sierra2_4A,
	"stevenpigeon":        dither.StevenPigeon,
}

// ParseMatrix resolves a matrix name, inline JSON, or path to a JSON file.
// An empty string and "floydsteinberg" both return nil.
func ParseMatrix(arg string) (dither.ErrorDiffusionMatrix, error) {
	name := strings.ReplaceAll(strings.ToLower(arg), "-", "_")
	if name == "" || name == "floydsteinberg" {
		return nil, nil
	}
	if m, ok := Matrices[name]; ok {
		return m, nil
	}

	var matrix dither.ErrorDiffusionMatrix
	if err := json.Unmarshal([]byte(arg), &matrix); err != nil {
		bytes, err := os.ReadFile(arg)
		if err != nil {
			return nil, errors.New("couldn't process argument as matrix name, inline JSON, or path to accessible JSON file")
		}
		if err = json.Unmarshal(bytes, &matrix); err != nil {
			return nil, errors.New("couldn't process argument as matrix name, inline JSON, or path to accessible JSON file")
		}
	}

	if len(matrix) == 0 {
		return nil, errors.New("matrix is empty")
	}
	// Is it rectangular?
	width := len(matrix[0])
	if width == 0 {
		return nil, errors.New("matrix has empty row")
	}
	for _, row := range matrix {
		if len(row) != width {
			return nil, errors.New("matrix is not rectangular, all rows must be the same length")
		}
	}
	return matrix, nil
}
