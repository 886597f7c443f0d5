package log

import (
	"fmt"

	"github.com/ttacon/chalk"
)

// ConsoleColorsType returns the escape sequences used to color log levels
type ConsoleColorsType struct{}

// Red is used for errors
func (ConsoleColorsType) Red() string {
	return chalk.Red.String()
}

// Green is used for completed steps
func (ConsoleColorsType) Green() string {
	return chalk.Green.String()
}

// Yellow is used for warnings and running steps
func (ConsoleColorsType) Yellow() string {
	return chalk.Yellow.String()
}

// Blue is used for info messages
func (ConsoleColorsType) Blue() string {
	return chalk.Blue.String()
}

// Cyan is used for debug messages
func (ConsoleColorsType) Cyan() string {
	return chalk.Cyan.String()
}

// Reset restores the terminal colors
func (ConsoleColorsType) Reset() string {
	return fmt.Sprint(chalk.Reset)
}

// ConsoleColors is the ConsoleColorsType used by loggers and spinners
var ConsoleColors = ConsoleColorsType{}
