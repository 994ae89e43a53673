package util

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"

	"github.com/pancudaniel7/blocksync-service/internal/infra"
)

var testConfigCandidates = []string{
	"../configs/test.yml",
	"../../configs/test.yml",
	"./configs/test.yml",
}

// InitConfig resets viper and loads configs/test.yml through the same path the
// binary uses, so defaults and BSYNC_ overrides apply.
func InitConfig() error {
	viper.Reset()
	for _, p := range testConfigCandidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := infra.InitConfig(p); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		log.Printf("Config loaded from: %s", viper.ConfigFileUsed())
		return nil
	}
	return fmt.Errorf("test config not found in %v", testConfigCandidates)
}
