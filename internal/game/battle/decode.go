package battle

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

type opponentPayload struct {
	Opponent string `mapstructure:"opponent"`
}

type voicePayload struct {
	Mode string `mapstructure:"mode"`
	Card string `mapstructure:"card"`
}

type presciencePayload struct {
	Element string `mapstructure:"element"`
}

type discardPayload struct {
	CardIDs []string `mapstructure:"card_ids"`
}

// decodeData decodes a response payload. Input is weakly typed so numbers
// that crossed a JSON boundary as float64 or strings still decode into ints.
// Missing data decodes to the zero value.
func decodeData(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
