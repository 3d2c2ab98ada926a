package repository

import "errors"

// ErrStaleVersion lo devuelven las escrituras condicionales (compare-and-swap) cuando la
// versión leída ya no coincide. Los casos de uso lo tratan como señal de reintento.
var ErrStaleVersion = errors.New("versión obsoleta")
