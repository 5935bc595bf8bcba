// Copyright 2020 Aleksandr Demakin. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
	"gonum.org/v1/gonum/mat"

	"github.com/avdva/posit"
	"github.com/avdva/posit/blas"
)

// calculator runs the commands for one format.
type calculator interface {
	info() *infoResult
	convert(values []string) (convertResults, error)
	dot(ctx context.Context, xs, ys []string, partitions int) (*dotResult, error)
	solve(n int) (*solveResult, error)
}

type calc[P posit.Params] struct{}

// calculators holds a calculator per policy and format name.
var calculators = map[posit.Policy]map[string]calculator{
	posit.PropagateNaR: {
		"8,0":  calc[posit.P8E0]{},
		"16,1": calc[posit.P16E1]{},
		"32,2": calc[posit.P32E2]{},
		"64,3": calc[posit.P64E3]{},
		"8,2":  calc[posit.Std8]{},
		"16,2": calc[posit.Std16]{},
		"64,2": calc[posit.Std64]{},
	},
	posit.SignalInvalid: {
		"8,0":  calc[sigP8E0]{},
		"16,1": calc[sigP16E1]{},
		"32,2": calc[sigP32E2]{},
		"64,3": calc[sigP64E3]{},
		"8,2":  calc[sigStd8]{},
		"16,2": calc[sigStd16]{},
		"64,2": calc[sigStd64]{},
	},
}

func formatNames() []string {
	names := make([]string, 0, len(calculators[posit.PropagateNaR]))
	for name := range calculators[posit.PropagateNaR] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type infoResult struct {
	Format       string  `json:"format"`
	DynamicRange string  `json:"dynamic_range"`
	Policy       string  `json:"policy"`
	MaxPos       string  `json:"maxpos"`
	MinPos       string  `json:"minpos"`
	Epsilon      string  `json:"epsilon"`
	Useed        float64 `json:"useed"`
	Digits       int     `json:"digits"`
}

func (r *infoResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Using %s\nmaxpos  %s\nminpos  %s\nepsilon %s\nuseed   %g\ndigits  %d\npolicy  %s\n",
		r.DynamicRange, r.MaxPos, r.MinPos, r.Epsilon, r.Useed, r.Digits, r.Policy)
	return err
}

func (calc[P]) info() *infoResult {
	f := posit.FormatOf[P]()
	return &infoResult{
		Format:       f.String(),
		DynamicRange: f.DynamicRange(),
		Policy:       f.Policy().String(),
		MaxPos:       posit.MaxPos[P]().String(),
		MinPos:       posit.MinPos[P]().String(),
		Epsilon:      posit.Epsilon[P]().String(),
		Useed:        f.Useed(),
		Digits:       f.Digits(),
	}
}

type convertResult struct {
	Input    string `json:"input"`
	Posit    string `json:"posit"`
	Bits     string `json:"bits"`
	Exact    string `json:"exact"`
	Error    string `json:"error,omitempty"`
	Float    string `json:"float64"`
	Regime   int    `json:"regime"`
	Exponent uint64 `json:"exponent"`
}

type convertResults []convertResult

func (rs convertResults) writeText(w io.Writer) error {
	for _, r := range rs {
		if _, err := fmt.Fprintf(w, "%s converts to %s (%s, k=%d, e=%d), exact %s, error %s\n",
			r.Input, r.Posit, r.Bits, r.Regime, r.Exponent, r.Exact, r.Error); err != nil {
			return err
		}
	}
	return nil
}

func bitsString[P posit.Params](p posit.Posit[P]) string {
	return fmt.Sprintf("0x%0*x", (posit.FormatOf[P]().NBits()+3)/4, p.Bits())
}

func (calc[P]) convert(values []string) (convertResults, error) {
	result := make(convertResults, 0, len(values))
	for _, s := range values {
		p, err := posit.Parse[P](s)
		if err != nil {
			return nil, err
		}
		fields := p.Fields()
		r := convertResult{
			Input:    s,
			Posit:    p.String(),
			Bits:     bitsString(p),
			Exact:    p.Decimal().String(),
			Float:    strconv.FormatFloat(p.Float64(), 'g', -1, 64),
			Regime:   fields.Regime,
			Exponent: fields.Exponent,
		}
		if p.IsNaR() {
			r.Exact = "NaR"
		} else if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			r.Error = p.Decimal().Sub(d).String()
		}
		result = append(result, r)
	}
	return result, nil
}

type dotResult struct {
	Terms               int    `json:"terms"`
	Partitions          int    `json:"partitions"`
	Fused               string `json:"fused"`
	Naive               string `json:"naive"`
	Parallel            string `json:"parallel"`
	Fingerprint         string `json:"fingerprint"`
	ParallelFingerprint string `json:"parallel_fingerprint"`
	Identical           bool   `json:"identical"`
}

func (r *dotResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "terms      %d\nfused      %s\nnaive      %s\nparallel   %s (%d partitions)\nquire      %s\npartitions %s\nidentical  %t\n",
		r.Terms, r.Fused, r.Naive, r.Parallel, r.Partitions, r.Fingerprint, r.ParallelFingerprint, r.Identical)
	return err
}

func parseVector[P posit.Params](values []string) (blas.Vector[P], error) {
	v := make(blas.Vector[P], len(values))
	for i, s := range values {
		p, err := posit.Parse[P](s)
		if err != nil {
			return nil, err
		}
		v[i] = p
	}
	return v, nil
}

func fingerprint[P posit.Params](q *posit.Quire[P]) (string, error) {
	data, err := q.MarshalBinary()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data)), nil
}

func (calc[P]) dot(ctx context.Context, xs, ys []string, partitions int) (*dotResult, error) {
	x, err := parseVector[P](xs)
	if err != nil {
		return nil, err
	}
	y, err := parseVector[P](ys)
	if err != nil {
		return nil, err
	}
	fused, err := blas.DotQuire(x, y)
	if err != nil {
		return nil, err
	}
	naive, err := blas.NaiveDot(x, y)
	if err != nil {
		return nil, err
	}
	parallel, err := blas.ParallelDotQuire(ctx, x, y, partitions)
	if err != nil {
		return nil, err
	}
	result := &dotResult{
		Terms:      len(x),
		Partitions: partitions,
		Fused:      fused.ToPosit().String(),
		Naive:      naive.String(),
		Parallel:   parallel.ToPosit().String(),
		Identical:  fused.Equal(parallel),
	}
	if result.Fingerprint, err = fingerprint(fused); err != nil {
		return nil, err
	}
	if result.ParallelFingerprint, err = fingerprint(parallel); err != nil {
		return nil, err
	}
	return result, nil
}

type solveResult struct {
	N          int           `json:"n"`
	Expected   string        `json:"expected"`
	Solution   []string      `json:"solution"`
	MaxError   string        `json:"max_error"`
	Float64    []string      `json:"float64_solution"`
	Float64Err string        `json:"float64_max_error"`
	Condition  string        `json:"condition,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

func (r *solveResult) writeText(w io.Writer) error {
	kops := "n/a"
	if secs := r.Elapsed.Seconds(); secs > 0 {
		kops = strconv.FormatUint(uint64(math.Pow(float64(r.N), 3)/(1000*secs)), 10)
	}
	_, err := fmt.Fprintf(w, "Crout took %v\nPerformance %s KOPS/s\nExpected %s\nSolution %v\nMax error %s\nfloat64 LU %v\nfloat64 max error %s\n",
		r.Elapsed, kops, r.Expected, r.Solution, r.MaxError, r.Float64, r.Float64Err)
	return err
}

// system returns the n*n matrix L*U, where both triangular factors
// have rows 1, 2, 3... counted from the diagonal.
func system[P posit.Params](n int) (*blas.Matrix[P], error) {
	l, u := blas.NewMatrix[P](n, n), blas.NewMatrix[P](n, n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			v := posit.FromInt64[P](int64(i - j + 1))
			l.Set(i, j, v)
			u.Set(j, i, v)
		}
	}
	return blas.MatMul(l, u)
}

func maxError(values []float64, expected float64) string {
	var result float64
	for _, v := range values {
		d := math.Abs(v - expected)
		if math.IsNaN(d) {
			return "NaN"
		}
		result = math.Max(result, d)
	}
	return strconv.FormatFloat(result, 'g', 4, 64)
}

func (calc[P]) solve(n int) (*solveResult, error) {
	a, err := system[P](n)
	if err != nil {
		return nil, err
	}
	epsplus := posit.One[P]().Add(posit.Epsilon[P]())
	x := make(blas.Vector[P], n)
	for i := range x {
		x[i] = epsplus
	}
	b, err := blas.MatVec(a, x)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	lu, err := blas.Crout(a)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	solution, err := blas.SolveCrout(lu, b)
	if err != nil {
		return nil, err
	}

	dense := make([]float64, 0, n*n)
	for _, row := range a.Float64() {
		dense = append(dense, row...)
	}
	var flu mat.LU
	flu.Factorize(mat.NewDense(n, n, dense))
	var fx mat.VecDense
	result := &solveResult{N: n, Expected: epsplus.String(), Elapsed: elapsed}
	if err := flu.SolveVecTo(&fx, false, mat.NewVecDense(n, b.Float64())); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("float64 solve failed: %w", err)
		}
		result.Condition = strconv.FormatFloat(float64(cond), 'g', 4, 64)
	}
	floats := make([]float64, n)
	for i := range floats {
		floats[i] = fx.AtVec(i)
		result.Float64 = append(result.Float64, strconv.FormatFloat(floats[i], 'g', -1, 64))
		result.Solution = append(result.Solution, solution[i].String())
	}
	result.MaxError = maxError(solution.Float64(), epsplus.Float64())
	result.Float64Err = maxError(floats, epsplus.Float64())
	return result, nil
}
