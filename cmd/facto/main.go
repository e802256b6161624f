// Package main provides the Facto CLI.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/facto-ml/facto/backend/cpu"
	"github.com/facto-ml/facto/decomp"
	"github.com/facto-ml/facto/tenalg"
	"github.com/facto-ml/facto/tensor"
)

const version = "v0.1.0-dev"

// Environment configuration, loaded from the process environment and an
// optional .env file:
//
//	FACTO_RANK   decomposition rank for the demo (default 4)
//	FACTO_ITERS  maximum iterations (default 100)
//	FACTO_SEED   random seed (default 0)
func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("Facto %s\n", version)
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "demo" {
		if err := runDemo(); err != nil {
			fmt.Fprintf(os.Stderr, "demo: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Facto - Tensor decompositions for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  demo       Run a Tucker and PARAFAC decomposition on random data")
}

func runDemo() error {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()
	tenalg.SetLogger(logger)
	decomp.SetLogger(logger)

	rank := envInt("FACTO_RANK", 4)
	iters := envInt("FACTO_ITERS", 100)
	seed := int64(envInt("FACTO_SEED", 0))

	bk := cpu.New()
	rng := rand.New(rand.NewSource(seed))
	x := tensor.Rand(tensor.Shape{12, 10, 8}, rng)

	logger.Info("running Tucker decomposition",
		zap.Int("rank", rank), zap.Int("n_iter_max", iters))
	tuckerOpts := decomp.DefaultTuckerOptions()
	tuckerOpts.NIterMax = iters
	tuckerOpts.Seed = seed
	tt, tuckerErrs, err := decomp.Tucker(bk, x, []int{rank}, tuckerOpts)
	if err != nil {
		return err
	}
	logger.Info("Tucker finished",
		zap.Ints("core_shape", []int(tt.Core.Shape())),
		zap.Int("iterations", len(tuckerErrs)),
		zap.Float64("reconstruction_error", tuckerErrs[len(tuckerErrs)-1]))

	logger.Info("running PARAFAC decomposition",
		zap.Int("rank", rank), zap.Int("n_iter_max", iters))
	cpOpts := decomp.DefaultParafacOptions()
	cpOpts.NIterMax = iters
	cpOpts.Seed = seed
	cp, _, cpErrs, err := decomp.Parafac(bk, x, rank, cpOpts)
	if err != nil {
		return err
	}
	logger.Info("PARAFAC finished",
		zap.Int("rank", cp.Rank()),
		zap.Int("iterations", len(cpErrs)),
		zap.Float64("reconstruction_error", cpErrs[len(cpErrs)-1]))
	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
