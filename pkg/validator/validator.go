package validator

import (
	"fmt"
	"strings"
	"sync"

	"wallet-signer/pkg/address"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Init 在 gin 的 binding 引擎上注册自定义校验
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		register(v)
		validate = v
	}
}

// Struct 非 HTTP 场景 (CLI) 下的结构体校验
func Struct(s interface{}) error {
	once.Do(func() {
		if validate == nil {
			v := validator.New()
			register(v)
			validate = v
		}
	})
	return validate.Struct(s)
}

func register(v *validator.Validate) {
	_ = v.RegisterValidation("algo_address", func(fl validator.FieldLevel) bool {
		return address.Validate(fl.Field().String()) == nil
	})
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			param := e.Param()

			switch tag {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
			case "algo_address":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不是合法地址", field))
			case "min":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 至少为 %s", field, param))
			case "max":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能超过 %s", field, param))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, param))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, tag))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "请求参数错误"
}
