// Command gvm loads a bytecode file and runs it to completion, optionally
// tracing machine lifecycle events to structured logs in debug mode.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/eckertliam/towervm/internal/gvm"
)

var (
	debugMode = flag.Bool("debug", false, "log load/trap/halt lifecycle events to stderr")
	stepMode  = flag.Bool("step", false, "log a static disassembly of the program before running it (implies -debug)")
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("Usage: gvm [-debug] [-step] <bytecode file>")
		os.Exit(2)
	}

	code, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *debugMode || *stepMode {
		built, err := zap.NewDevelopment()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		logger = built
	}
	defer logger.Sync()

	m := gvm.New()
	logger.Info("loaded code", zap.String("file", args[0]), zap.Int("bytes", len(code)))

	if *stepMode {
		runStepMode(m, code, logger)
		return
	}

	if err := m.Execute(code); err != nil {
		logger.Error("trap", zap.Error(err))
		var trap *gvm.TrapError
		if errors.As(err, &trap) {
			fmt.Println(trap.Error())
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}

	logger.Info("halted cleanly")
	fmt.Print(m.GetStream())
}

// runStepMode disassembles the whole program up front and logs one line
// per decoded instruction of the code segment as loaded (self-modifying
// code via LoadCode/SaveCode can still change what actually executes),
// then runs to completion. Machine has no stepping API, so instructions
// are not executed one at a time and nothing is logged per dispatch.
func runStepMode(m *gvm.Machine, code []byte, logger *zap.Logger) {
	for _, line := range gvm.Disassemble(code) {
		logger.Debug(line)
	}

	if err := m.Execute(code); err != nil {
		logger.Error("trap", zap.Error(err))
		fmt.Println(err)
		os.Exit(1)
	}

	logger.Info("halted cleanly")
	fmt.Print(m.GetStream())
}
