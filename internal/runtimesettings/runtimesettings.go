// Package runtimesettings parses and writes UCLA-ROMS ".in" runtime
// configuration files.
//
// The format has no grammar a general-purpose config library targets: a
// sequence of "section_name:" headers each followed by one or more
// content lines, comments starting with "!", and Fortran-style "D"
// exponents in floating point literals (1.0D-3). Nothing in the corpus
// parses this, so this package is hand-rolled against the standard
// library only.
package runtimesettings

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/me/gowe/pkg/model"
)

// Parse reads a ROMS ".in" file into a RuntimeSettings value. Each
// "section_name:" header starts a new block; its content lines (minus
// blank lines and "!" comments) become that block's Values, in their
// original order, so a write-back keeps every block's content and
// order. Text after a header's colon (such as "ntimes dt ndtfast
// ninfo") is not kept, and Write re-indents content lines.
func Parse(r io.Reader) (*model.RuntimeSettings, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("runtimesettings: %w", err)
	}

	rs := &model.RuntimeSettings{}
	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if strings.Contains(trimmed, ":") && !strings.HasPrefix(trimmed, "!") {
			key := strings.TrimSpace(strings.SplitN(trimmed, ":", 2)[0])
			i++
			var content []string
			for i < len(lines) && !strings.Contains(lines[i], ":") {
				line := strings.TrimSpace(lines[i])
				if line != "" && !strings.HasPrefix(line, "!") {
					content = append(content, line)
				}
				i++
			}
			rs.Blocks = append(rs.Blocks, model.RuntimeSettingsBlock{Key: key, Values: content})
			continue
		}
		i++
	}

	for _, required := range []string{"title", "time_stepping", "bottom_drag", "output_root_name"} {
		if _, ok := rs.Get(required); !ok {
			return nil, model.NewValidationError(
				fmt.Sprintf("runtime settings file is missing required section %q", required),
				model.FieldError{Path: "$." + required, Message: "required section absent"},
			)
		}
	}
	return rs, nil
}

// ParseFile opens and parses path.
func ParseFile(path string) (*model.RuntimeSettings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runtimesettings: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Write serializes rs back into ROMS ".in" form, blocks in the order
// they appear in rs.Blocks (the order Parse read them in, for untouched
// files; callers that add new blocks append them at the end).
func Write(w io.Writer, rs *model.RuntimeSettings) error {
	for _, b := range rs.Blocks {
		if _, err := fmt.Fprintf(w, "%s:\n    %s\n\n", b.Key, strings.Join(b.Values, "\n    ")); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes rs to path, truncating any existing content.
func WriteFile(path string, rs *model.RuntimeSettings) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("runtimesettings: %w", err)
	}
	defer f.Close()
	return Write(f, rs)
}

////////////////////////////////////////////////////////////////////////////
// Typed section accessors. Only the sections ROMS always needs, plus the
// ones MARBL-coupled runs use, are typed; everything else round trips as
// raw lines via rs.Get/rs.Set.
////////////////////////////////////////////////////////////////////////////

// TimeStepping holds the "time_stepping:" section.
type TimeStepping struct {
	NTimes  int
	Dt      int
	NdtFast int
	NInfo   int
}

// GetTimeStepping reads the required "time_stepping:" section.
func GetTimeStepping(rs *model.RuntimeSettings) (TimeStepping, error) {
	values, ok := rs.Get("time_stepping")
	if !ok {
		return TimeStepping{}, fmt.Errorf("runtimesettings: time_stepping section absent")
	}
	fields := strings.Fields(strings.Join(values, " "))
	ints, err := parseInts(fields, 4)
	if err != nil {
		return TimeStepping{}, fmt.Errorf("runtimesettings: time_stepping: %w", err)
	}
	return TimeStepping{NTimes: ints[0], Dt: ints[1], NdtFast: ints[2], NInfo: ints[3]}, nil
}

// SetTimeStepping writes v back into rs's "time_stepping:" section.
func SetTimeStepping(rs *model.RuntimeSettings, v TimeStepping) {
	rs.Set("time_stepping", []string{fmt.Sprintf("%d    %d    %d    %d", v.NTimes, v.Dt, v.NdtFast, v.NInfo)})
}

// BottomDrag holds the "bottom_drag:" section.
type BottomDrag struct {
	Rdrg  float64
	Rdrg2 float64
	Zob   float64
}

// GetBottomDrag reads the required "bottom_drag:" section.
func GetBottomDrag(rs *model.RuntimeSettings) (BottomDrag, error) {
	values, ok := rs.Get("bottom_drag")
	if !ok {
		return BottomDrag{}, fmt.Errorf("runtimesettings: bottom_drag section absent")
	}
	fields := strings.Fields(strings.Join(values, " "))
	floats, err := parseFortranFloats(fields, 3)
	if err != nil {
		return BottomDrag{}, fmt.Errorf("runtimesettings: bottom_drag: %w", err)
	}
	return BottomDrag{Rdrg: floats[0], Rdrg2: floats[1], Zob: floats[2]}, nil
}

// SetBottomDrag writes v back into rs's "bottom_drag:" section.
func SetBottomDrag(rs *model.RuntimeSettings, v BottomDrag) {
	rs.Set("bottom_drag", []string{fmt.Sprintf("%s    %s    %s", formatFloat(v.Rdrg), formatFloat(v.Rdrg2), formatFloat(v.Zob))})
}

// InitialConditions holds the "initial:" section. IniName is empty for
// a cold-start run declared with a bare "0" line (seen in ROMS's
// analytical river example).
type InitialConditions struct {
	NRrec   int
	IniName string
}

// GetInitial reads the required "initial:" section.
func GetInitial(rs *model.RuntimeSettings) (InitialConditions, error) {
	values, ok := rs.Get("initial")
	if !ok {
		return InitialConditions{}, fmt.Errorf("runtimesettings: initial section absent")
	}
	if len(values) == 0 {
		return InitialConditions{}, fmt.Errorf("runtimesettings: initial section empty")
	}
	nrrec, err := strconv.Atoi(strings.TrimSpace(values[0]))
	if err != nil {
		return InitialConditions{}, fmt.Errorf("runtimesettings: initial.nrrec: %w", err)
	}
	if nrrec == 0 && len(values) == 1 {
		return InitialConditions{NRrec: 0}, nil
	}
	if len(values) < 2 {
		return InitialConditions{}, fmt.Errorf("runtimesettings: initial section missing ininame")
	}
	return InitialConditions{NRrec: nrrec, IniName: strings.TrimSpace(values[1])}, nil
}

// SetInitial writes v back into rs's "initial:" section.
func SetInitial(rs *model.RuntimeSettings, v InitialConditions) {
	if v.IniName == "" {
		rs.Set("initial", []string{strconv.Itoa(v.NRrec)})
		return
	}
	rs.Set("initial", []string{strconv.Itoa(v.NRrec), v.IniName})
}

// GetForcing reads the "forcing:" section, one path per line. A run
// with no forcing files (also seen in analytical examples) returns nil.
func GetForcing(rs *model.RuntimeSettings) []string {
	values, ok := rs.Get("forcing")
	if !ok || len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// SetForcing writes paths back into rs's "forcing:" section, one per line.
func SetForcing(rs *model.RuntimeSettings, paths []string) {
	rs.Set("forcing", paths)
}

// MARBLBiogeochemistry holds the "MARBL_biogeochemistry:" section.
type MARBLBiogeochemistry struct {
	NamelistFname   string
	TracerListFname string
	DiagListFname   string
}

// GetMARBLBiogeochemistry reads the optional "MARBL_biogeochemistry:" section.
func GetMARBLBiogeochemistry(rs *model.RuntimeSettings) (MARBLBiogeochemistry, bool) {
	values, ok := rs.Get("MARBL_biogeochemistry")
	if !ok || len(values) < 3 {
		return MARBLBiogeochemistry{}, false
	}
	return MARBLBiogeochemistry{
		NamelistFname:   strings.TrimSpace(values[0]),
		TracerListFname: strings.TrimSpace(values[1]),
		DiagListFname:   strings.TrimSpace(values[2]),
	}, true
}

// SetMARBLBiogeochemistry writes v back into rs's "MARBL_biogeochemistry:" section.
func SetMARBLBiogeochemistry(rs *model.RuntimeSettings, v MARBLBiogeochemistry) {
	rs.Set("MARBL_biogeochemistry", []string{v.NamelistFname, v.TracerListFname, v.DiagListFname})
}

// SCoord holds the optional "S-coord:" section.
type SCoord struct {
	ThetaS float64
	ThetaB float64
	Tcline float64
}

// GetSCoord reads the optional "S-coord:" section.
func GetSCoord(rs *model.RuntimeSettings) (SCoord, bool, error) {
	values, ok := rs.Get("S-coord")
	if !ok || len(values) == 0 {
		return SCoord{}, false, nil
	}
	fields := strings.Fields(values[0])
	floats, err := parseFortranFloats(fields, 3)
	if err != nil {
		return SCoord{}, false, fmt.Errorf("runtimesettings: S-coord: %w", err)
	}
	return SCoord{ThetaS: floats[0], ThetaB: floats[1], Tcline: floats[2]}, true, nil
}

// LinRhoEos holds the optional "lin_rho_eos:" section.
type LinRhoEos struct {
	Tcoef float64
	T0    float64
	Scoef float64
	S0    float64
}

// GetLinRhoEos reads the optional "lin_rho_eos:" section.
func GetLinRhoEos(rs *model.RuntimeSettings) (LinRhoEos, bool, error) {
	values, ok := rs.Get("lin_rho_eos")
	if !ok || len(values) == 0 {
		return LinRhoEos{}, false, nil
	}
	fields := strings.Fields(values[0])
	floats, err := parseFortranFloats(fields, 4)
	if err != nil {
		return LinRhoEos{}, false, fmt.Errorf("runtimesettings: lin_rho_eos: %w", err)
	}
	return LinRhoEos{Tcoef: floats[0], T0: floats[1], Scoef: floats[2], S0: floats[3]}, true, nil
}

// VerticalMixing holds the optional "vertical_mixing:" section. AktBak
// has one entry per tracer, so its length is not fixed.
type VerticalMixing struct {
	AkvBak float64
	AktBak []float64
}

// GetVerticalMixing reads the optional "vertical_mixing:" section.
func GetVerticalMixing(rs *model.RuntimeSettings) (VerticalMixing, bool, error) {
	values, ok := rs.Get("vertical_mixing")
	if !ok || len(values) == 0 {
		return VerticalMixing{}, false, nil
	}
	fields := strings.Fields(strings.Join(values, " "))
	if len(fields) < 2 {
		return VerticalMixing{}, false, fmt.Errorf("runtimesettings: vertical_mixing: expected at least 2 values")
	}
	akv, err := parseFortranFloat(fields[0])
	if err != nil {
		return VerticalMixing{}, false, fmt.Errorf("runtimesettings: vertical_mixing.Akv_bak: %w", err)
	}
	akt, err := parseFortranFloats(fields[1:], len(fields)-1)
	if err != nil {
		return VerticalMixing{}, false, fmt.Errorf("runtimesettings: vertical_mixing.Akt_bak: %w", err)
	}
	return VerticalMixing{AkvBak: akv, AktBak: akt}, true, nil
}

// GetFloatScalar reads a single-value optional section such as "rho0:",
// "lateral_visc:", "gamma2:", "SSS_correction:", "SST_correction:",
// "ubind:", or "v_sponge:".
func GetFloatScalar(rs *model.RuntimeSettings, key string) (float64, bool, error) {
	values, ok := rs.Get(key)
	if !ok || len(values) == 0 {
		return 0, false, nil
	}
	v, err := parseFortranFloat(strings.Fields(values[0])[0])
	if err != nil {
		return 0, false, fmt.Errorf("runtimesettings: %s: %w", key, err)
	}
	return v, true, nil
}

// SetFloatScalar writes a single-value optional section.
func SetFloatScalar(rs *model.RuntimeSettings, key string, v float64) {
	rs.Set(key, []string{formatFloat(v)})
}

// GetFloatList reads a single-line, variable-length optional section
// such as "tracer_diff2:" (one entry per tracer).
func GetFloatList(rs *model.RuntimeSettings, key string) ([]float64, bool, error) {
	values, ok := rs.Get(key)
	if !ok || len(values) == 0 {
		return nil, false, nil
	}
	fields := strings.Fields(strings.Join(values, " "))
	floats, err := parseFortranFloats(fields, len(fields))
	if err != nil {
		return nil, false, fmt.Errorf("runtimesettings: %s: %w", key, err)
	}
	return floats, true, nil
}

// GetStringScalar reads a single-value optional section such as "grid:"
// or "climatology:".
func GetStringScalar(rs *model.RuntimeSettings, key string) (string, bool) {
	values, ok := rs.Get(key)
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

////////////////////////////////////////////////////////////////////////////
// value formatting / parsing
////////////////////////////////////////////////////////////////////////////

func parseInts(fields []string, n int) ([]int, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFortranFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := parseFortranFloat(fields[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// parseFortranFloat accepts ROMS's Fortran-style "D" exponent (1.0D-3)
// in addition to ordinary float literals.
func parseFortranFloat(s string) (float64, error) {
	normalized := strings.ReplaceAll(strings.ToUpper(s), "D", "E")
	return strconv.ParseFloat(normalized, 64)
}

// formatFloat renders v the way ROMS ".in" files print it: "0." for
// zero, scientific notation with six fractional digits (3.000000E-03)
// for magnitudes outside [1e-2, 1e4), and a plain decimal otherwise.
func formatFloat(v float64) string {
	if v == 0.0 {
		return "0."
	}
	abs := math.Abs(v)
	if abs < 1e-2 || abs >= 1e4 {
		s := strconv.FormatFloat(v, 'E', 6, 64)
		return strings.Replace(s, "E+00", "E0", 1)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
