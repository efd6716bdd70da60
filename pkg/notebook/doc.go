/*
Package notebook evaluates the cells of a notebook, in order, inside one
process.

Cells come from a ports.NotebookLoader (a Loam directory of markdown files in
the CLI). Each cell is sent as an Eval message and its output is handed to a
Handler, which prints text for humans or JSON lines for tools.
*/
package notebook
