// Package all wires the built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. The CLI imports it once; the rest
// of the code depends only on the storage abstraction.
package all

import (
	_ "idaetl/internal/storage/postgres"
)
