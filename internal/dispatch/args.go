package dispatch

import (
	"errors"
	"fmt"
	"math"

	"warvox/internal/state"
	"warvox/internal/types"
)

// Argument errors. Handlers report these as failed operations, never as
// dispatcher errors: one bad call must not sink its siblings.
var (
	ErrMissingArg = errors.New("missing argument")
	ErrBadArg     = errors.New("bad argument")
)

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingArg, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrBadArg, key)
	}
	return s, nil
}

// optStringArg extracts an optional string argument, empty when absent.
func optStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg extracts a required integer argument. JSON numbers arrive as
// float64; fractional values are rejected rather than truncated.
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingArg, key)
	}
	return asInt(v, key)
}

// optIntArg extracts an optional integer argument with a default.
func optIntArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	return asInt(v, key)
}

func asInt(v any, key string) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s must be an integer", ErrBadArg, key)
		}
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s must be an integer", ErrBadArg, key)
}

// boolArg extracts an optional boolean argument with a default.
func boolArg(args map[string]any, key string, def bool) (bool, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrBadArg, key)
	}
	return b, nil
}

// sideArg extracts the side argument. Unrecognized values normalize to
// the player side, matching ParseSide.
func sideArg(args map[string]any) (types.Side, error) {
	raw, err := stringArg(args, "side")
	if err != nil {
		return "", err
	}
	return types.ParseSide(raw), nil
}

// roleArg extracts the optional role restriction. Absent means no
// restriction; an unknown role is an error rather than silently ignored.
func roleArg(args map[string]any) (state.ModelRole, error) {
	raw := optStringArg(args, "role")
	if raw == "" {
		return "", nil
	}
	role := state.ParseRole(raw)
	if role == "" {
		return "", fmt.Errorf("%w: role %q", ErrBadArg, raw)
	}
	return role, nil
}

// phaseArg extracts and validates the phase argument.
func phaseArg(args map[string]any) (types.Phase, error) {
	raw, err := stringArg(args, "phase")
	if err != nil {
		return "", err
	}
	phase := types.ParsePhase(raw)
	if phase == "" {
		return "", fmt.Errorf("%w: phase %q", ErrBadArg, raw)
	}
	return phase, nil
}
