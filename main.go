// 在專案根目錄執行：go run . serve
package main

import (
	"os"

	"github.com/hsuanyo7160/go-travel-planner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
