// Package score implements the wallet credit scoring model. It combines six
// component scores produced by [feature] extractors into a single 0-1000
// score using configurable [Weights], and exposes the fixed risk
// [Category] bands the score falls into.
package score
