package env

import (
	"fmt"
	"log"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zenv"
)

type EnvStruct struct {
	HOME       string `zog:"HOME"`
	DATA_DIR   string `zog:"WALLETGATE_DATA_DIR"`
	LOG_LEVEL  string `zog:"WALLETGATE_LOG_LEVEL"`
	DEBUG_ADDR string `zog:"WALLETGATE_DEBUG_ADDR"`
}

var env *EnvStruct

var logLevels = []string{"debug", "info", "warn", "error"}

var EnvSchema = z.Struct(z.Shape{
	"HOME":       z.String(),
	"DATA_DIR":   z.String().Optional().Trim(),
	"LOG_LEVEL":  z.String().Optional().Trim().OneOf(logLevels),
	"DEBUG_ADDR": z.String().Optional().Trim(),
})

// Parse reads the environment without caching the result.
func Parse() (*EnvStruct, error) {
	parsed := &EnvStruct{}
	if errs := EnvSchema.Parse(zenv.NewDataProvider(), parsed); errs != nil {
		return nil, fmt.Errorf("invalid environment:\n%s", z.Issues.Prettify(errs))
	}
	return parsed, nil
}

func Get() *EnvStruct {
	if env == nil {
		parsed, err := Parse()
		if err != nil {
			log.Fatal("[Walletgate] Failed to parse environment variables ", err)
		}
		env = parsed
	}
	return env
}
