/*
Copyright © 2024 the steadybox authors.
This file is part of steadybox.

steadybox is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

steadybox is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with steadybox.  If not, see <http://www.gnu.org/licenses/>.
*/


// Package steadybox finds steady states of tracers carried by a fixed
// circulation through a network of boxes and transformed by local
// kinetics. The transport of each tracer is a sparse linear operator over
// the wet cells of a grid; the kinetics act on one cell at a time and are
// differentiated automatically to assemble the Jacobian of the coupled
// system.
package steadybox

// Version gives the version number.
const Version = "0.1.0"
