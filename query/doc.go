// Package query searches the Bike Index registry and persists what it finds.
//
// A [Query] is built around a parameter set:
//
//	params, err := query.ParseParams("location=Chicago, IL-distance=10-stolenness=proximity")
//	q, err := query.New(c, query.WithParams(params))
//
// [Query.Fetch] probes the endpoint with a HEAD request and, on a 200,
// retrieves and stores the results. The URL is rebuilt from the parameters
// on every call, so changing them with [Query.SetParams] or
// [Query.SetParamsFromString] takes effect immediately.
//
// Once results are in, [Query.Preview] lists them, [Query.SaveImages]
// downloads each record's large image into a subdirectory, and
// [Query.CacheResults] writes the raw response as indented JSON. Both
// default their names to one derived from the parameters, see
// [Query.SubdirName].
//
// # Errors
//
// Failures wrap one of the package sentinels so callers can react with
// [errors.Is]: [ErrUnavailable] for a non-200 probe, a missing parameter
// set or a transport failure, [ErrTimeout] for a request that ran past
// its deadline, and [ErrMalformedResponse] for a body that could not be
// decoded. Finding nothing to save is not an error.
package query
