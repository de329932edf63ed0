package constants

const CoulombMeVfm float64 = 1.439964548     // e^2/(4 pi e0) [MeV fm]
const BohrRadiusFm float64 = 52917.721054    // [fm]
const ThomasFermiScreening float64 = 0.88534 // a = 0.8853 a0 Z^(-1/3)
const Avogadro float64 = 6.02214076e23       // [mol^-1]
const FmToCm float64 = 1e-13                 // [cm]
const Quantile95 = 1.96
