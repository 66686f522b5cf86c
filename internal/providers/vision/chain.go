package vision

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	chainPathEnv = "VISION_CHAIN_CONFIG"
	freeEnv      = "VISION_MODELS_FREE"
	paidEnv      = "VISION_MODELS_PAID"

	defaultPaidCost = 0.002
)

type chainFile struct {
	Providers []providerEntry `yaml:"providers"`
}

type providerEntry struct {
	Name           string  `yaml:"name"`
	Tier           string  `yaml:"tier"`
	CostPerCall    float64 `yaml:"costPerCall"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
}

// LoadChain builds the ranked provider chain: defaults, then the optional
// YAML file named by VISION_CHAIN_CONFIG, then comma-separated env overrides.
// The result is an explicit value handed to each execution; nothing reads
// chain configuration at request time.
func LoadChain() ([]Provider, error) {
	chain := defaultChain()

	if path := os.Getenv(chainPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("vision: read chain config %s: %w", path, err)
		}
		parsed, err := ParseChain(raw)
		if err != nil {
			return nil, fmt.Errorf("vision: parse chain config %s: %w", path, err)
		}
		if len(parsed) > 0 {
			chain = parsed
		}
	}

	if fromEnv := chainFromEnv(); len(fromEnv) > 0 {
		chain = fromEnv
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("vision: provider chain is empty")
	}
	return chain, nil
}

// ParseChain decodes a YAML chain definition.
func ParseChain(raw []byte) ([]Provider, error) {
	var file chainFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	out := make([]Provider, 0, len(file.Providers))
	for _, entry := range file.Providers {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		tier := entry.Tier
		if tier != TierPaid {
			tier = TierFree
		}
		out = append(out, Provider{
			Name:        name,
			Tier:        tier,
			CostPerCall: entry.CostPerCall,
			Timeout:     time.Duration(entry.TimeoutSeconds) * time.Second,
		})
	}
	return out, nil
}

func chainFromEnv() []Provider {
	free := splitModels(os.Getenv(freeEnv))
	paid := splitModels(os.Getenv(paidEnv))
	if len(free) == 0 && len(paid) == 0 {
		return nil
	}
	out := make([]Provider, 0, len(free)+len(paid))
	for _, name := range free {
		out = append(out, Provider{Name: name, Tier: TierFree})
	}
	for _, name := range paid {
		out = append(out, Provider{Name: name, Tier: TierPaid, CostPerCall: defaultPaidCost})
	}
	return out
}

func splitModels(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Free-tier providers rank first so paid capacity is only touched when the
// free stack is unavailable.
func defaultChain() []Provider {
	return []Provider{
		{Name: "google/gemini-2.0-flash-exp:free", Tier: TierFree},
		{Name: "meta-llama/llama-4-maverick:free", Tier: TierFree},
		{Name: "google/gemini-2.5-flash", Tier: TierPaid, CostPerCall: defaultPaidCost},
		{Name: "openai/gpt-4.1-mini", Tier: TierPaid, CostPerCall: defaultPaidCost},
	}
}
