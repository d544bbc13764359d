// Package fsx holds small filesystem helpers shared across packages.
package fsx
