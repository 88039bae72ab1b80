package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance returns the shared, lazily-initialized validator
// instance used to check node configs against their descriptor's strict
// schema.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New()
	})
	return validateInst
}

// ValidateConfig decodes raw into a fresh value produced by newConfig and
// runs struct validation against it. A node type with no NewConfig factory
// has no strict schema; callers should skip validation and rely on
// best-effort coercion at execution time instead.
func ValidateConfig(newConfig func() interface{}, raw map[string]interface{}) (interface{}, error) {
	target := newConfig()

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := json.Unmarshal(buf, target); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validatorInstance().Struct(target); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return target, nil
}
