package handlers

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// RegisterValidators adds the custom binding tags used by request and event structs.
// It must run before the first request is bound.
func RegisterValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
			return
		}
		validatorsErr = v.RegisterValidation("phase", validatePhase)
	})
	return validatorsErr
}

func validatePhase(fl validator.FieldLevel) bool {
	_, err := mentor.ParsePhase(fl.Field().String())
	return err == nil
}
