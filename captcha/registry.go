package captcha

import "go.uber.org/zap"

// Registry maps every challenge type to the strategies that may take it,
// in the order they are tried. The table is built once from the config and
// never changes at runtime: both reCAPTCHA variants go to the credential
// free browser strategy, every other type goes to the Capsolver fallback
// when a key is configured. Types without a usable strategy keep an empty
// row, the orchestrator turns those into failed outcomes.
type Registry struct {
	table map[ChallengeType][]Strategy
}

func NewRegistry(cfg Config, log *zap.Logger) *Registry {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	primary := NewRecaptchaStrategy(log)
	var fallback Strategy
	if cfg.FallbackAPIKey != "" {
		fallback = NewCapsolverStrategy(NewCapsolverClient(cfg.FallbackAPIKey, log), log)
	}

	table := make(map[ChallengeType][]Strategy, len(AllChallengeTypes))
	for _, typ := range AllChallengeTypes {
		switch typ {
		case RecaptchaV2, RecaptchaV3:
			table[typ] = []Strategy{primary}
		default:
			if fallback != nil {
				table[typ] = []Strategy{fallback}
			}
		}
	}
	return &Registry{table: table}
}

// StrategiesFor returns the registered strategies for a challenge type.
// An empty result means the type cannot be solved with the current
// configuration.
func (r *Registry) StrategiesFor(typ ChallengeType) []Strategy {
	return r.table[typ]
}
