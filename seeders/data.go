package seeders

type unitSeed struct {
	Name     string
	Code     string
	Level    string
	Children []unitSeed
}

var organizationUnitsData = []unitSeed{
	{
		Name: "北京市", Code: "110000", Level: "province",
		Children: []unitSeed{
			{Name: "北京市辖区", Level: "city", Children: []unitSeed{
				{Name: "东城区", Level: "district"},
				{Name: "西城区", Level: "district"},
				{Name: "朝阳区", Level: "district"},
			}},
			{Name: "密云县", Level: "county"},
		},
	},
	{
		Name: "河北省", Code: "130000", Level: "province",
		Children: []unitSeed{
			{Name: "石家庄市", Level: "city", Children: []unitSeed{
				{Name: "长安区", Level: "district"},
				{Name: "正定县", Level: "county"},
			}},
			{Name: "唐山市", Level: "city", Children: []unitSeed{
				{Name: "路南区", Level: "district"},
			}},
		},
	},
	{
		Name: "广东省", Code: "440000", Level: "province",
		Children: []unitSeed{
			{Name: "广州市", Level: "city", Children: []unitSeed{
				{Name: "天河区", Level: "district"},
				{Name: "越秀区", Level: "district"},
			}},
			{Name: "深圳市", Level: "city", Children: []unitSeed{
				{Name: "南山区", Level: "district"},
			}},
		},
	},
}
