package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/vench/teianalytics"
)

func TestBindRequestFlags(t *testing.T) {
	t.Parallel()

	req := &teianalytics.Request{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindRequestFlags(flags, req)

	err := flags.Parse([]string{
		"--tet", "nEenWmSyUEp",
		"--dimension", "ou:USER_ORGUNIT,w75KJ2mc4zz",
		"--dimension", "IpHINAT79UW.A03MvHHogjR.UXz7xuGCEhU:GT:3000",
		"--enrollment-date", "IpHINAT79UW.LAST_12_MONTHS,IpHINAT79UW.LAST_5_YEARS",
		"--program-status", "IpHINAT79UW.COMPLETED",
		"--enrollment-status", "IpHINAT79UW.ACTIVE,ur1Edk5Oe2n.ACTIVE",
		"--header", "ouname,w75KJ2mc4zz",
		"--id-scheme", "code",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"ou:USER_ORGUNIT", "w75KJ2mc4zz", "IpHINAT79UW.A03MvHHogjR.UXz7xuGCEhU:GT:3000"}, req.Dimension)
	require.Equal(t, []string{"IpHINAT79UW.LAST_12_MONTHS", "IpHINAT79UW.LAST_5_YEARS"}, req.EnrollmentDate)
	require.Equal(t, []string{"IpHINAT79UW.COMPLETED", "IpHINAT79UW.ACTIVE", "ur1Edk5Oe2n.ACTIVE"}, req.ProgramStatus)
	require.Equal(t, []string{"ouname", "w75KJ2mc4zz"}, req.Headers)
	require.Equal(t, teianalytics.IDSchemeCode, req.IDScheme)
	require.Equal(t, 1, req.Page)
}
