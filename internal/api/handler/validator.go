package handler

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cadenza/backend/internal/model"
	"cadenza/backend/internal/service"
)

// RegisterValidators 在 gin 的校验引擎上注册自定义规则
//
//	hhmm     时刻，HH:MM 或 HH:MM:SS
//	decision 代课回复，approve | decline
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("gin 校验引擎不是 validator/v10")
	}
	if err := v.RegisterValidation("hhmm", validateHHMM); err != nil {
		return err
	}
	return v.RegisterValidation("decision", validateDecision)
}

func validateHHMM(fl validator.FieldLevel) bool {
	_, err := model.ClockMinutes(fl.Field().String())
	return err == nil
}

func validateDecision(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case service.DecisionApprove, service.DecisionDecline:
		return true
	}
	return false
}
