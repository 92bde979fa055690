package model

import (
	"time"

	"golang.org/x/exp/constraints"
)

// Series is a time series of values
type Series[T constraints.Ordered] []T

// Values returns the values of the series
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the last value of the series given a past index position
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns the last values of the series given a size
func (s Series[T]) LastValues(size int) []T {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// PriceSeries : 시간 오름차순, timestamp 중복 없는 캔들 목록
type PriceSeries []Candle

func (ps PriceSeries) Len() int {
	return len(ps)
}

// Last : 가장 최근 캔들. 비어 있으면 false
func (ps PriceSeries) Last() (Candle, bool) {
	if len(ps) == 0 {
		return Candle{}, false
	}
	return ps[len(ps)-1], true
}

// First : 가장 오래된 캔들. 비어 있으면 false
func (ps PriceSeries) First() (Candle, bool) {
	if len(ps) == 0 {
		return Candle{}, false
	}
	return ps[0], true
}

func (ps PriceSeries) Clone() PriceSeries {
	if ps == nil {
		return nil
	}
	out := make(PriceSeries, len(ps))
	copy(out, ps)
	return out
}

func (ps PriceSeries) Closes() Series[float64] {
	out := make(Series[float64], len(ps))
	for i, c := range ps {
		out[i] = c.Close
	}
	return out
}

func (ps PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(ps))
	for i, c := range ps {
		out[i] = c.Time
	}
	return out
}

// PrependOlder : older 중 현재 첫 캔들보다 엄격하게 이전인 것만 앞에 붙인 새 series를 반환.
// endTime 페이징은 경계 캔들을 다시 돌려주기 때문에 겹치는 부분은 버린다.
func (ps PriceSeries) PrependOlder(older PriceSeries) PriceSeries {
	head, ok := ps.First()
	kept := make(PriceSeries, 0, len(older)+len(ps))
	for _, c := range older {
		if ok && !c.Time.Before(head.Time) {
			continue
		}
		if n := len(kept); n > 0 && !c.Time.After(kept[n-1].Time) {
			continue
		}
		kept = append(kept, c)
	}
	return append(kept, ps...)
}
