package pricing

import "gonum.org/v1/gonum/stat/distuv"

func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
