/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package main

import (
	"github.com/josephgoksu/ytflow/cmd"
	"github.com/josephgoksu/ytflow/internal/logger"
)

func main() {
	defer logger.HandlePanic()
	cmd.Execute()
}
