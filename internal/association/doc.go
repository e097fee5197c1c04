// Package association finds and classifies the candidate links between the
// detections of one image and the running catalog.
//
// A Matcher writes every (detection, catalog entry) pair whose de Ruiter
// radius is below the threshold for the detection's kind into the scratch
// associations table. Classify then splits the pairs by multiplicity: pairs
// whose catalog entry is only reached by detections matching nothing else are
// merged directly, everything else is handed to the Grouper, which partitions
// the ambiguous pairs into connected components that collapse into one entry.
//
// Two matchers are provided. DeclarativeMatcher pushes the work into the
// store as one INSERT ... SELECT; VectorizedMatcher loads the window into
// flat arrays and runs a Kernel in process. Both produce the same candidate
// set for the same inputs.
package association
