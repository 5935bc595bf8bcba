// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"encoding/json"
	"fmt"
	"math"
)

func ExamplePosit() {
	a := FromFloat64[P32E2](1.5)
	b := FromInt64[P32E2](2)
	fmt.Println(a.Mul(b))

	q, err := a.Div(FromInt64[P32E2](3))
	if err != nil {
		panic(err)
	}
	fmt.Println(q)

	s, err := b.Sqrt()
	if err != nil {
		panic(err)
	}
	fmt.Printf("sqrt(2) = %v, %.4f, %x\n", s, s, s)
	fmt.Printf("%x\n", a)
	fmt.Println(FromFloat64[P8E0](math.Pi))

	fmt.Println(MaxPos[P32E2]().Add(One[P32E2]()).Eq(MaxPos[P32E2]()))
	fmt.Println(NaR[P32E2]().Eq(NaR[P32E2]()))

	data, err := json.Marshal(a)
	if err != nil {
		panic(err)
	}
	fmt.Printf("json for value: %s\n", string(data))

	// Output:
	// 3
	// 0.5
	// sqrt(2) = 1.414213561, 1.4142, 43504f33
	// 44000000
	// 3.12
	// true
	// false
	// json for value: "1.5"
}

func ExampleQuire() {
	x := []Posit[P32E2]{FromInt64[P32E2](100000000), One[P32E2](), FromInt64[P32E2](-100000000)}
	y := []Posit[P32E2]{One[P32E2](), One[P32E2](), One[P32E2]()}

	var naive Posit[P32E2]
	for i := range x {
		naive = naive.Add(x[i].Mul(y[i]))
	}

	q, err := NewQuire[P32E2](len(x))
	if err != nil {
		panic(err)
	}
	for i := range x {
		if err := q.Accumulate(x[i], y[i]); err != nil {
			panic(err)
		}
	}
	fmt.Printf("naive: %v, fused: %v\n", naive, q.ToPosit())

	if err := q.Add(One[P32E2]()); err != nil {
		fmt.Println(err)
	}

	// Output:
	// naive: 0, fused: 1
	// quire: capacity 3 exceeded
}

func ExampleFormat_DynamicRange() {
	fmt.Println(FormatOf[P32E2]().DynamicRange())
	fmt.Println(FormatOf[P8E0]().DynamicRange())
	// Output:
	// posit<32,2> useed scale     4   minpos scale       -120   maxpos scale        120
	// posit<8,0> useed scale     1   minpos scale         -6   maxpos scale          6
}

func ExampleParse() {
	p, err := Parse[P16E1]("3.14159")
	if err != nil {
		panic(err)
	}
	fmt.Println(p, p.Float64())

	_, err = Parse[P16E1]("pi")
	fmt.Println(err != nil)
	// Output:
	// 3.1416 3.1416015625
	// true
}
