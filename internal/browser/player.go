package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tubeguard/internal/enforce"
)

// playerResult is what every player script returns.
type playerResult struct {
	Missing bool            `json:"missing"`
	OK      bool            `json:"ok"`
	Value   json.RawMessage `json:"value"`
	Error   string          `json:"error"`
}

func (r playerResult) err(method string) error {
	switch {
	case r.Missing:
		return fmt.Errorf("%s: %w", method, enforce.ErrNoPlayer)
	case r.Error != "":
		return fmt.Errorf("%s: %s", method, r.Error)
	case !r.OK:
		return fmt.Errorf("%s: no result", method)
	}
	return nil
}

// player adapts the page's movie_player API.
type player struct {
	eval func(ctx context.Context, expr string, res any) error
}

func (p *player) run(ctx context.Context, method, expr string, out any) error {
	var res playerResult
	if err := p.eval(ctx, expr, &res); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if err := res.err(method); err != nil {
		return err
	}
	if out == nil || len(res.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return fmt.Errorf("%s: decode: %w", method, err)
	}
	return nil
}

func (p *player) invoke(ctx context.Context, method string, out any, args ...any) error {
	return p.run(ctx, method, playerCallScript(method, args...), out)
}

func (p *player) AvailableQualityLevels(ctx context.Context) ([]string, error) {
	var levels []string
	if err := p.invoke(ctx, "getAvailableQualityLevels", &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

func (p *player) Quality(ctx context.Context) (string, error) {
	var q string
	if err := p.invoke(ctx, "getPlaybackQuality", &q); err != nil {
		return "", err
	}
	return q, nil
}

// SetQuality pins the range and also requests the level directly; some
// player builds ignore one of the two. Either call missing is fine, both
// missing means no player.
func (p *player) SetQuality(ctx context.Context, level string) error {
	rangeErr := p.invoke(ctx, "setPlaybackQualityRange", nil, level, level)
	if rangeErr != nil && !errors.Is(rangeErr, enforce.ErrNoPlayer) {
		return rangeErr
	}
	err := p.invoke(ctx, "setPlaybackQuality", nil, level)
	if errors.Is(err, enforce.ErrNoPlayer) && rangeErr == nil {
		return nil
	}
	return err
}

func (p *player) PlaybackRate(ctx context.Context) (float64, error) {
	var r float64
	if err := p.invoke(ctx, "getPlaybackRate", &r); err != nil {
		return 0, err
	}
	return r, nil
}

func (p *player) SetPlaybackRate(ctx context.Context, rate float64) error {
	return p.run(ctx, "setPlaybackRate", setRateScript(rate), nil)
}

func (p *player) Pause(ctx context.Context) error {
	return p.invoke(ctx, "pauseVideo", nil)
}

func (p *player) SetAutoplay(ctx context.Context, on bool) error {
	return p.run(ctx, "autonav", autoplayScript(on), nil)
}
